// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `tracker:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort: port for the API, /metrics and /ws/stream (default 4000)
//   - BasePath: optional route prefix
//   - CORS.AllowOrigin: Access-Control-Allow-Origin value (default "*")
//   - Naver.*: Open API base URL, timeout and the env vars holding credentials
//   - Catalog.SeedFile: optional YAML product list, hot-reloaded
//   - Analysis.*: keyword matcher limits (5 matches, 120 context chars)
//   - Storage.*: memory | sqlite | postgres
//   - Events.*: ingest batch limit and consent enforcement
//   - Auth.*: "apikey" or "none" for mutating routes
//   - Stream.*: WebSocket broadcast interval and analytics window
//
// Load(path) applies defaults before unmarshalling, then validates.
// LoadEnv reads .env.local / .env so credentials can live outside the YAML.
package config
