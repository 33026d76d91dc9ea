package services

import "testing"

func TestHeuristicExtractorProductionWatts(t *testing.T) {
	ex := HeuristicExtractor{}

	tests := []struct {
		name     string
		expName  string
		category string
		want     int64
		wantOK   bool
	}{
		{
			name:    "panel with attached unit",
			expName: "Panneau solaire 150W",
			want:    150,
			wantOK:  true,
		},
		{
			name:    "panel with spaced unit",
			expName: "Panneau flexible 200 W monocristallin",
			want:    200,
			wantOK:  true,
		},
		{
			name:     "electrical category with wattage in name",
			expName:  "Kit 300W complet",
			category: "Équipement électrique",
			want:     300,
			wantOK:   true,
		},
		{
			name:     "unaccented category spelling",
			expName:  "Kit 300W complet",
			category: "equipement electrique",
			want:     300,
			wantOK:   true,
		},
		{
			name:    "panel term but no wattage token",
			expName: "Panneau solaire souple",
			wantOK:  false,
		},
		{
			name:    "wattage without panel term",
			expName: "Chauffage 2000W",
			wantOK:  false,
		},
		{
			name:    "watt-hours are not watts",
			expName: "Panneau 500Wh",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ex.ProductionWatts(tt.expName, tt.category)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("watts = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeuristicExtractorStorageAmpHours(t *testing.T) {
	ex := HeuristicExtractor{}

	tests := []struct {
		name     string
		expName  string
		category string
		want     int64
		wantOK   bool
	}{
		{
			name:    "lithium battery",
			expName: "Batterie lithium 100Ah",
			want:    100,
			wantOK:  true,
		},
		{
			name:    "case insensitive unit",
			expName: "BATTERIE AGM 120AH",
			want:    120,
			wantOK:  true,
		},
		{
			name:     "battery category",
			expName:  "Cellule 280 Ah",
			category: "Batteries",
			want:     280,
			wantOK:   true,
		},
		{
			name:    "battery without capacity token",
			expName: "Batterie de secours",
			wantOK:  false,
		},
		{
			name:    "capacity without battery term",
			expName: "Reservoir 100Ah",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ex.StorageAmpHours(tt.expName, tt.category)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("amp-hours = %d, want %d", got, tt.want)
			}
		})
	}
}
