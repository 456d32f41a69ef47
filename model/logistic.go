package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Training hyperparameters. inverseRegStrength mirrors the common library
// default C=1.0; the resulting L2 penalty applies to the weights only, never
// the intercept. Fitting is full-batch gradient descent, which is
// deterministic for a given dataset.
const (
	inverseRegStrength = 1.0
	learningRate       = 0.1
	maxEpochs          = 2000
)

// LogisticRegression is a binary linear classifier fitted on class-balanced
// log-loss. The class weights follow the reference formula exactly:
// weight of class 1 uses class 0's count share and vice versa, so the
// minority class gets the larger effective weight.
type LogisticRegression struct {
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	PosWeight float64   `json:"pos_weight"`
	NegWeight float64   `json:"neg_weight"`
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{}
}

// Trained reports whether coefficients have been fitted or loaded.
func (lr *LogisticRegression) Trained() bool {
	return len(lr.Weights) > 0
}

// Train fits the classifier. Labels must contain both classes: the
// balancing weights divide by the class counts, so an empty or single-class
// set fails with ErrDegenerateTrainingData.
func (lr *LogisticRegression) Train(features [][]float64, labels []int) error {
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	total := len(labels)
	if total == 0 {
		return ErrDegenerateTrainingData
	}

	var n0, n1 int
	for _, label := range labels {
		switch label {
		case 0:
			n0++
		case 1:
			n1++
		default:
			return fmt.Errorf("label must be 0 or 1, got %d", label)
		}
	}
	if n0 == 0 || n1 == 0 {
		return ErrDegenerateTrainingData
	}

	dims := len(features[0])
	for _, row := range features {
		if len(row) != dims {
			return &ShapeMismatchError{Want: dims, Got: len(row)}
		}
	}

	posWeight := float64(n0) / float64(total)
	negWeight := float64(n1) / float64(total)
	lambda := 1.0 / inverseRegStrength

	weights := make([]float64, dims)
	bias := 0.0
	grad := make([]float64, dims)

	for epoch := 0; epoch < maxEpochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		biasGrad := 0.0

		for i, row := range features {
			p := sigmoid(dot(weights, row) + bias)
			sampleWeight, y := negWeight, 0.0
			if labels[i] == 1 {
				sampleWeight, y = posWeight, 1.0
			}
			g := sampleWeight * (p - y)
			for j, v := range row {
				grad[j] += g * v
			}
			biasGrad += g
		}

		inv := 1.0 / float64(total)
		for j := range weights {
			weights[j] -= learningRate * (grad[j] + lambda*weights[j]) * inv
		}
		bias -= learningRate * biasGrad * inv
	}

	lr.Weights = weights
	lr.Bias = bias
	lr.PosWeight = posWeight
	lr.NegWeight = negWeight
	return nil
}

// Predict returns one 0/1 label per row, thresholded at p=0.5, in input
// order.
func (lr *LogisticRegression) Predict(features [][]float64) ([]int, error) {
	if !lr.Trained() {
		return nil, ErrNotTrained
	}
	out := make([]int, len(features))
	for i, row := range features {
		if len(row) != len(lr.Weights) {
			return nil, &ShapeMismatchError{Want: len(lr.Weights), Got: len(row)}
		}
		if sigmoid(dot(lr.Weights, row)+lr.Bias) > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// Save writes the fitted coefficients as a JSON artifact.
func (lr *LogisticRegression) Save(path string) error {
	if !lr.Trained() {
		return ErrNotTrained
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load reads a JSON artifact written by Save.
func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	*lr = loaded
	return nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
