package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"

	"flightdelay/dataset"
	"flightdelay/db"
	fhttp "flightdelay/http"
	"flightdelay/model"
	"flightdelay/monitoring"
)

type Config struct {
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Dataset struct {
		Path   string `yaml:"path"`
		Latin1 bool   `yaml:"latin1"`
		Watch  bool   `yaml:"watch"`
	} `yaml:"dataset"`
	Model struct {
		Path string `yaml:"path"`
	} `yaml:"model"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() Config {
	var config Config
	config.Http.Port = 8080
	config.Database.Path = "./data/flightdelay.db"
	config.Dataset.Path = "./data/data.csv"
	config.Model.Path = "./models/delay.model"
	config.Log.File = "./logs/flightdelay.log"
	config.Log.Level = "info"
	return config
}

func main() {
	config := loadConfig("config.yaml")
	logger := newLogger(config.Log.File, config.Log.Level)
	defer logger.Sync()

	if err := db.InitDB(config.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	loader := dataset.NewLoader(config.Dataset.Path)
	loader.Latin1 = config.Dataset.Latin1

	metrics := monitoring.NewMetricsCollector()

	delayModel := model.NewDelayModel(loader.Load, config.Model.Path, logger)
	delayModel.SetTrainedHook(func(clf *model.LogisticRegression, rows int) {
		metrics.IncTrainingRuns()
		entry := db.TrainingLog{
			ModelName:  "logistic_delay",
			PosWeight:  clf.PosWeight,
			NegWeight:  clf.NegWeight,
			DataPoints: rows,
			TrainedAt:  time.Now().UTC(),
		}
		if err := db.SaveTrainingRun(entry); err != nil {
			logger.Warn("failed to record training run", zap.Error(err))
		}
	})

	// Load the artifact or train before serving so the first request does
	// not pay for the bootstrap. Serving still starts on failure; the lazy
	// gate retries on the first prediction.
	if err := delayModel.EnsureTrained(); err != nil {
		logger.Warn("could not train model at startup", zap.Error(err))
	}

	hub := monitoring.NewHub(logger)
	go hub.Run()

	serverConfig := fhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverConfig.Port = config.Http.Port
	}
	server := fhttp.NewServer(serverConfig, fhttp.HandlerDeps{
		Model:   delayModel,
		Hub:     hub,
		Metrics: metrics,
		Logger:  logger,
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	if config.Dataset.Watch {
		monitor, err := dataset.NewMonitor(config.Dataset.Path)
		if err != nil {
			logger.Warn("dataset monitor unavailable", zap.Error(err))
		} else {
			defer monitor.Close()
			go func() {
				err := monitor.Watch(func(path string) {
					logger.Info("dataset changed, refitting", zap.String("path", path))
					if err := delayModel.Refit(); err != nil {
						logger.Error("refit failed", zap.Error(err))
					}
				})
				if err != nil {
					logger.Error("dataset monitor stopped", zap.Error(err))
				}
			}()
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	hub.Stop()
}

func loadConfig(path string) Config {
	config := defaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return config
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		log.Printf("invalid config %s: %v, using defaults", path, err)
		return defaultConfig()
	}
	return config
}

func newLogger(file, level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), lvl),
	}
	if file != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, lvl))
	}

	return zap.New(zapcore.NewTee(cores...))
}
