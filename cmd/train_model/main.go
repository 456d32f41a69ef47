// Command train_model fits the delay classifier from a CSV export and writes
// the model artifact used by the serving process.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"flightdelay/dataset"
	"flightdelay/model"
)

func main() {
	dataPath := flag.String("data", "./data/data.csv", "path to the training CSV")
	modelPath := flag.String("model_path", "./models/delay.model", "where to write the fitted model")
	latin1 := flag.Bool("latin1", false, "decode the CSV as ISO 8859-1")
	testRatio := flag.Float64("test_ratio", 0.2, "fraction of rows held out for evaluation")
	flag.Parse()

	loader := dataset.NewLoader(*dataPath)
	loader.Latin1 = *latin1

	records, err := loader.Load()
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	stats := loader.Stats()
	fmt.Printf("loaded %d rows (%d rejected)\n", stats.Passed, stats.Rejected)

	features, labels, err := model.BuildFeatures(records, true)
	if err != nil {
		log.Fatalf("build features: %v", err)
	}

	trainX, trainY, testX, testY := splitDataset(features, labels, *testRatio)
	fmt.Printf("training on %d rows, evaluating on %d\n", len(trainY), len(testY))

	clf := model.NewLogisticRegression()
	if err := clf.Train(trainX, trainY); err != nil {
		log.Fatalf("train: %v", err)
	}
	fmt.Printf("class weights: pos=%.4f neg=%.4f\n", clf.PosWeight, clf.NegWeight)

	if len(testY) > 0 {
		evaluateModel(clf, testX, testY)
	}

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("create model dir: %v", err)
	}
	if err := clf.Save(*modelPath); err != nil {
		log.Fatalf("save model: %v", err)
	}
	fmt.Printf("model written to %s\n", *modelPath)
}

// splitDataset holds out the tail of the dataset, preserving input order so
// evaluation rows come from the most recent flights.
func splitDataset(features [][]float64, labels []int, testRatio float64) ([][]float64, []int, [][]float64, []int) {
	if testRatio < 0 {
		testRatio = 0
	}
	if testRatio > 0.5 {
		testRatio = 0.5
	}
	cut := len(labels) - int(float64(len(labels))*testRatio)
	return features[:cut], labels[:cut], features[cut:], labels[cut:]
}

func evaluateModel(clf *model.LogisticRegression, testX [][]float64, testY []int) {
	predicted, err := clf.Predict(testX)
	if err != nil {
		log.Fatalf("evaluate: %v", err)
	}

	var correct, tp, fp, fn int
	for i, label := range testY {
		if predicted[i] == label {
			correct++
		}
		switch {
		case predicted[i] == 1 && label == 1:
			tp++
		case predicted[i] == 1 && label == 0:
			fp++
		case predicted[i] == 0 && label == 1:
			fn++
		}
	}

	accuracy := float64(correct) / float64(len(testY))
	precision, recall := 0.0, 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	fmt.Printf("accuracy=%.4f precision=%.4f recall=%.4f\n", accuracy, precision, recall)
}
