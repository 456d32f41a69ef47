package model

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// RecordLoader supplies the canonical training dataset for bootstrap and
// refit. main wires it to the dataset package.
type RecordLoader func() ([]FlightRecord, error)

// TrainedHook is invoked after every completed training run with the fitted
// classifier and the number of training rows.
type TrainedHook func(clf *LogisticRegression, rows int)

// DelayModel is the long-lived serving handle around the fitted classifier.
// Predictions read the current snapshot under RLock; Fit and Refit replace
// it under the write lock, so in-flight predictions finish against the old
// snapshot. The state transition is one-way: Unfitted -> Fitted.
type DelayModel struct {
	mu         sync.RWMutex
	clf        *LogisticRegression
	generation uint64
	loader     RecordLoader
	modelPath  string
	logger     *zap.Logger
	onTrained  TrainedHook
}

// NewDelayModel creates an unfitted handle. modelPath is where the fitted
// artifact is persisted; empty disables persistence. A nil logger is
// replaced with a no-op one.
func NewDelayModel(loader RecordLoader, modelPath string, logger *zap.Logger) *DelayModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DelayModel{loader: loader, modelPath: modelPath, logger: logger}
}

// SetTrainedHook registers a callback run after every training run, for
// recording runs in the database and metrics.
func (m *DelayModel) SetTrainedHook(hook TrainedHook) {
	m.mu.Lock()
	m.onTrained = hook
	m.mu.Unlock()
}

// Trained reports whether a fitted classifier is being served.
func (m *DelayModel) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clf != nil && m.clf.Trained()
}

// Snapshot returns the currently served classifier, or nil when unfitted.
func (m *DelayModel) Snapshot() *LogisticRegression {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clf
}

// Generation counts snapshot swaps. Callers caching predictions compare it
// to detect that their cached labels came from older coefficients.
func (m *DelayModel) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Fit trains a fresh classifier on already-built features and swaps it in.
func (m *DelayModel) Fit(features [][]float64, labels []int) error {
	clf := NewLogisticRegression()
	if err := clf.Train(features, labels); err != nil {
		return err
	}
	m.mu.Lock()
	m.clf = clf
	m.generation++
	m.mu.Unlock()
	return nil
}

// Predict classifies already-built feature rows, bootstrapping the
// classifier first if nothing has been fitted yet.
func (m *DelayModel) Predict(features [][]float64) ([]int, error) {
	if err := m.EnsureTrained(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	clf := m.clf
	m.mu.RUnlock()
	return clf.Predict(features)
}

// EnsureTrained bootstraps the classifier exactly once: a saved artifact is
// preferred, otherwise the canonical dataset is loaded and fitted. The
// fitted check is repeated under the write lock, so concurrent first calls
// trigger a single training run.
func (m *DelayModel) EnsureTrained() error {
	m.mu.RLock()
	ready := m.clf != nil && m.clf.Trained()
	m.mu.RUnlock()
	if ready {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clf != nil && m.clf.Trained() {
		return nil
	}

	if m.modelPath != "" {
		if _, err := os.Stat(m.modelPath); err == nil {
			clf := NewLogisticRegression()
			if err := clf.Load(m.modelPath); err == nil && clf.Trained() {
				m.clf = clf
				m.generation++
				m.logger.Info("loaded model artifact", zap.String("path", m.modelPath))
				return nil
			}
			m.logger.Warn("model artifact unreadable, retraining", zap.String("path", m.modelPath))
		}
	}

	return m.trainLocked()
}

// Refit retrains from the current dataset and atomically replaces the
// served snapshot.
func (m *DelayModel) Refit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainLocked()
}

func (m *DelayModel) trainLocked() error {
	if m.loader == nil {
		return errors.New("no dataset loader configured")
	}
	records, err := m.loader()
	if err != nil {
		return fmt.Errorf("load training data: %w", err)
	}

	features, labels, err := BuildFeatures(records, true)
	if err != nil {
		return err
	}

	clf := NewLogisticRegression()
	if err := clf.Train(features, labels); err != nil {
		return err
	}
	m.clf = clf
	m.generation++

	if m.modelPath != "" {
		if err := clf.Save(m.modelPath); err != nil {
			m.logger.Warn("failed to save model artifact",
				zap.String("path", m.modelPath), zap.Error(err))
		}
	}

	m.logger.Info("model trained",
		zap.Int("rows", len(records)),
		zap.Float64("pos_weight", clf.PosWeight),
		zap.Float64("neg_weight", clf.NegWeight))

	if m.onTrained != nil {
		m.onTrained(clf, len(records))
	}
	return nil
}
