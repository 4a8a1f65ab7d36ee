package eval

import "testing"

func TestPrecisionAtK(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []int
		relevant  []int
		wantP     float64
	}{
		{"perfect", []int{12, 40, 7}, []int{12, 40, 7}, 1.0},
		{"partial", []int{12, 40, 99}, []int{12, 40, 7}, 0.666},
		{"none", []int{1, 2, 3}, []int{12, 40}, 0.0},
		{"empty_retrieved", []int{}, []int{12, 40}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PrecisionAtK(tc.retrieved, tc.relevant)
			if diff := p - tc.wantP; diff > 0.01 || diff < -0.01 {
				t.Errorf("precision = %.3f, want %.3f", p, tc.wantP)
			}
		})
	}
}

func TestRecallAtK(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []int
		relevant  []int
		wantR     float64
	}{
		{"perfect", []int{12, 40, 7}, []int{12, 40, 7}, 1.0},
		{"partial", []int{12, 40, 99}, []int{12, 40, 7}, 0.666},
		{"none", []int{1, 2, 3}, []int{12, 40}, 0.0},
		{"empty_relevant", []int{12, 40}, []int{}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := RecallAtK(tc.retrieved, tc.relevant)
			if diff := r - tc.wantR; diff > 0.01 || diff < -0.01 {
				t.Errorf("recall = %.3f, want %.3f", r, tc.wantR)
			}
		})
	}
}

func TestReciprocalRank(t *testing.T) {
	cases := []struct {
		name      string
		retrieved []int
		relevant  []int
		wantMRR   float64
	}{
		{"first", []int{12, 40, 7}, []int{12}, 1.0},
		{"second", []int{99, 12, 7}, []int{12}, 0.5},
		{"third", []int{99, 98, 12}, []int{12}, 0.333},
		{"any_of_several", []int{99, 40, 12}, []int{12, 40}, 0.5},
		{"missing", []int{1, 2, 3}, []int{12}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mrr := ReciprocalRank(tc.retrieved, tc.relevant)
			if diff := mrr - tc.wantMRR; diff > 0.01 || diff < -0.01 {
				t.Errorf("MRR = %.3f, want %.3f", mrr, tc.wantMRR)
			}
		})
	}
}

func TestNDCG(t *testing.T) {
	cases := []struct {
		name     string
		scores   []float64
		ideal    []float64
		wantNDCG float64
	}{
		{"perfect", []float64{3, 2, 1}, []float64{3, 2, 1}, 1.0},
		{"reversed", []float64{1, 2, 3}, []float64{3, 2, 1}, 0.790},
		{"zeros", []float64{0, 0, 0}, []float64{3, 2, 1}, 0.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ndcg := NDCG(tc.scores, tc.ideal)
			if diff := ndcg - tc.wantNDCG; diff > 0.01 || diff < -0.01 {
				t.Errorf("NDCG = %.3f, want %.3f", ndcg, tc.wantNDCG)
			}
		})
	}
}
