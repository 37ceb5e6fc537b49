// Command seed loads a YAML catalog of models, users and API keys into the
// gateway database. Rows are upserted, so re-running against a live database
// is safe.
package main

import (
	"flag"
	"os"

	"github.com/Laisky/zap"
	"github.com/jinzhu/copier"
	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/clause"

	"github.com/makehub/llm-gateway/common/logger"
	"github.com/makehub/llm-gateway/model"
)

type catalog struct {
	Models []modelSeed `yaml:"models"`
	Users  []userSeed  `yaml:"users"`
	Keys   []keySeed   `yaml:"api_keys"`
}

type modelSeed struct {
	ModelId             string   `yaml:"model_id"`
	Provider            string   `yaml:"provider"`
	AdapterType         string   `yaml:"adapter_type"`
	ProviderModelId     string   `yaml:"provider_model_id"`
	ContextWindow       int      `yaml:"context_window"`
	SupportToolCalling  bool     `yaml:"support_tool_calling"`
	SupportVision       bool     `yaml:"support_vision"`
	PricePerInputToken  float64  `yaml:"price_per_input_token"`
	PricePerOutputToken float64  `yaml:"price_per_output_token"`
	PricePerCachedToken *float64 `yaml:"price_per_cached_token"`
	ExtraParam          string   `yaml:"extra_param"`
	Active              bool     `yaml:"active"`
}

type userSeed struct {
	Id      int     `yaml:"id"`
	Email   string  `yaml:"email"`
	Balance float64 `yaml:"balance"`
}

type keySeed struct {
	UserId int    `yaml:"user_id"`
	Name   string `yaml:"name"`
	// Key is the plaintext credential; only its hash is stored.
	Key    string `yaml:"key"`
	Active bool   `yaml:"active"`
}

func main() {
	path := flag.String("catalog", "catalog.yaml", "path to the catalog file")
	flag.Parse()

	raw, err := os.ReadFile(*path)
	if err != nil {
		logger.Logger.Fatal("read catalog", zap.String("path", *path), zap.Error(err))
	}
	var cat catalog
	if err = yaml.Unmarshal(raw, &cat); err != nil {
		logger.Logger.Fatal("parse catalog", zap.Error(err))
	}

	model.InitDB()
	defer func() {
		if err := model.CloseDB(); err != nil {
			logger.Logger.Error("close database", zap.Error(err))
		}
	}()

	for _, seed := range cat.Models {
		var row model.Model
		if err = copier.Copy(&row, &seed); err != nil {
			logger.Logger.Fatal("copy model seed", zap.Error(err))
		}
		err = model.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "model_id"}, {Name: "provider"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			logger.Logger.Fatal("upsert model",
				zap.String("model", seed.ModelId),
				zap.String("provider", seed.Provider),
				zap.Error(err))
		}
	}
	logger.Logger.Info("models seeded", zap.Int("count", len(cat.Models)))

	for _, seed := range cat.Users {
		var row model.User
		if err = copier.Copy(&row, &seed); err != nil {
			logger.Logger.Fatal("copy user seed", zap.Error(err))
		}
		err = model.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			logger.Logger.Fatal("upsert user", zap.String("email", seed.Email), zap.Error(err))
		}
	}
	logger.Logger.Info("users seeded", zap.Int("count", len(cat.Users)))

	for _, seed := range cat.Keys {
		row := model.ApiKey{
			UserId:  seed.UserId,
			Name:    seed.Name,
			KeyHash: model.HashKey(seed.Key),
			Active:  seed.Active,
		}
		err = model.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key_hash"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			logger.Logger.Fatal("upsert api key", zap.String("name", seed.Name), zap.Error(err))
		}
	}
	logger.Logger.Info("api keys seeded", zap.Int("count", len(cat.Keys)))
}
