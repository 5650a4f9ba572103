package catalog

import "github.com/contextcommerce/contextcommerce/pkg/types"

func margin(v int64) *int64 { return &v }

// Seed returns the built-in demo catalog.
func Seed() []types.Product {
	return []types.Product{
		{
			ID:               "p-seed-1",
			Name:             "울 블렌드 더블 코트",
			Brand:            "Contextual Studio",
			Description:      "가벼운 울 혼방으로 만든 더블브레스티드 코트",
			Price:            189000,
			Margin:           margin(42000),
			ImageURL:         "https://picsum.photos/seed/coat/400/400",
			LinkURL:          "#",
			Category:         "아우터",
			Tags:             []string{"겨울", "코트"},
			UpdatedAt:        "2024-12-15",
			Source:           types.SourceSeed,
			ShortformMatches: 6,
			ArticleMatches:   4,
			AIScore:          92,
			Status:           types.StatusActive,
			Badges:           []string{"주력"},
		},
		{
			ID:               "p-seed-2",
			Name:             "캐시미어 블렌드 니트",
			Brand:            "Naver Select",
			Description:      "부드러운 촉감의 크루넥 니트웨어",
			Price:            129000,
			Margin:           margin(32000),
			ImageURL:         "https://picsum.photos/seed/knit/400/400",
			LinkURL:          "#",
			Category:         "니트",
			Tags:             []string{"베이직", "레이어드"},
			UpdatedAt:        "2024-12-10",
			Source:           types.SourceCSV,
			ShortformMatches: 3,
			ArticleMatches:   5,
			AIScore:          88,
			Status:           types.StatusActive,
		},
		{
			ID:               "p-seed-3",
			Name:             "클래식 첼시 부츠",
			Brand:            "Handmade Seoul",
			Description:      "천연 가죽으로 제작된 첼시 부츠",
			Price:            259000,
			Margin:           margin(61000),
			ImageURL:         "https://picsum.photos/seed/boots/400/400",
			LinkURL:          "#",
			Category:         "신발",
			Tags:             []string{"가죽", "포멀"},
			UpdatedAt:        "2024-12-05",
			Source:           types.SourceManual,
			ShortformMatches: 2,
			ArticleMatches:   2,
			AIScore:          81,
			Status:           types.StatusPaused,
		},
		{
			ID:               "p-seed-4",
			Name:             "테크 플리스 후디",
			Brand:            "Contextual Studio",
			Description:      "가벼운 보온성의 플리스 후드 집업",
			Price:            89000,
			Margin:           margin(18000),
			ImageURL:         "https://picsum.photos/seed/hoodie/400/400",
			LinkURL:          "#",
			Category:         "캐주얼",
			Tags:             []string{"보온", "운동"},
			UpdatedAt:        "2024-12-18",
			Source:           types.SourceAPI,
			ShortformMatches: 5,
			ArticleMatches:   3,
			AIScore:          86,
			Status:           types.StatusActive,
			Rating:           4.5,
		},
		{
			ID:               "p-seed-5",
			Name:             "프리미엄 슬림 셔츠",
			Brand:            "Naver Select",
			Description:      "스트레치 원단의 슬림 핏 셔츠",
			Price:            69000,
			Margin:           margin(12000),
			ImageURL:         "https://picsum.photos/seed/shirt/400/400",
			LinkURL:          "#",
			Category:         "셔츠",
			Tags:             []string{"오피스", "데일리"},
			UpdatedAt:        "2024-12-12",
			Source:           types.SourceSeed,
			ShortformMatches: 4,
			ArticleMatches:   1,
			AIScore:          79,
			Status:           types.StatusActive,
		},
		{
			ID:               "p-seed-6",
			Name:             "라이트 패딩 베스트",
			Brand:            "Contextual Studio",
			Description:      "도심형 레이어드에 맞춘 경량 패딩",
			Price:            109000,
			Margin:           margin(26000),
			ImageURL:         "https://picsum.photos/seed/vest/400/400",
			LinkURL:          "#",
			Category:         "아우터",
			Tags:             []string{"레이어드", "도심"},
			UpdatedAt:        "2024-12-03",
			Source:           types.SourceCSV,
			ShortformMatches: 1,
			ArticleMatches:   2,
			AIScore:          73,
			Status:           types.StatusDraft,
		},
		{
			ID:               "p-seed-7",
			Name:             "러너 스니커즈",
			Brand:            "Handmade Seoul",
			Description:      "레트로 러닝 실루엣의 스니커즈",
			Price:            139000,
			Margin:           margin(24000),
			ImageURL:         "https://picsum.photos/seed/sneakers/400/400",
			LinkURL:          "#",
			Category:         "신발",
			Tags:             []string{"레트로", "러닝"},
			UpdatedAt:        "2024-12-08",
			Source:           types.SourceManual,
			ShortformMatches: 2,
			ArticleMatches:   3,
			AIScore:          77,
			Status:           types.StatusActive,
		},
		{
			ID:               "p-seed-8",
			Name:             "미니멀 레더 백팩",
			Brand:            "Contextual Studio",
			Description:      "데일리로 쓰기 좋은 미니멀 백팩",
			Price:            159000,
			Margin:           margin(35000),
			ImageURL:         "https://picsum.photos/seed/backpack/400/400",
			LinkURL:          "#",
			Category:         "가방",
			Tags:             []string{"데일리", "미니멀"},
			UpdatedAt:        "2024-12-02",
			Source:           types.SourceSeed,
			ShortformMatches: 0,
			ArticleMatches:   1,
			AIScore:          70,
			Status:           types.StatusPaused,
		},
	}
}
