package trainer

import "sort"

// Metrics holds the validation scores of one fitted ensemble member. All
// values lie in [0, 1].
type Metrics struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	AUC       float64
}

// ToMap converts the metrics into the persisted metadata representation.
func (m Metrics) ToMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"auc":       m.AUC,
	}
}

// evaluate scores predicted probabilities against ground-truth labels at a
// 0.5 decision threshold.
func evaluate(probabilities []float64, y []int) Metrics {
	var tp, fp, tn, fn int
	for i, p := range probabilities {
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		switch {
		case predicted == 1 && y[i] == 1:
			tp++
		case predicted == 1 && y[i] == 0:
			fp++
		case predicted == 0 && y[i] == 0:
			tn++
		default:
			fn++
		}
	}

	total := len(y)
	m := Metrics{}
	if total > 0 {
		m.Accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	m.AUC = rocAUC(probabilities, y)
	return m
}

// rocAUC computes the area under the ROC curve with the rank-sum
// (Mann-Whitney) statistic, averaging ranks across tied probabilities.
// Degenerate single-class inputs score 0.5.
func rocAUC(probabilities []float64, y []int) float64 {
	var positives, negatives int
	for _, label := range y {
		if label == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	order := make([]int, len(probabilities))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return probabilities[order[a]] < probabilities[order[b]]
	})

	ranks := make([]float64, len(probabilities))
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && probabilities[order[j]] == probabilities[order[i]] {
			j++
		}
		// 1-based average rank over the tie group [i, j)
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avgRank
		}
		i = j
	}

	var positiveRankSum float64
	for i, label := range y {
		if label == 1 {
			positiveRankSum += ranks[i]
		}
	}

	nPos := float64(positives)
	nNeg := float64(negatives)
	return (positiveRankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}
