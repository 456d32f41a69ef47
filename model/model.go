package model

// Classifier is the contract a trained binary classifier fulfills.
type Classifier interface {
	Train(features [][]float64, labels []int) error
	Predict(features [][]float64) ([]int, error)
	Save(path string) error
	Load(path string) error
}

var _ Classifier = (*LogisticRegression)(nil)
