package main

import (
	"os"
	"time"

	"vault/internal/pkg/bootstrap"
	"vault/internal/service/economy/domain"
)

const defaultConfigPath = "configs/economy.yaml"

type economyConfig struct {
	bootstrap.Config `yaml:",inline"`

	Economy economySettings `yaml:"economy"`
}

type economySettings struct {
	StartingBalance  int64             `yaml:"starting_balance"`
	RegiftFee        int64             `yaml:"regift_fee"`
	PayoutExpression string            `yaml:"payout_expression"`
	OutboxInterval   time.Duration     `yaml:"outbox_interval"`
	OutboxBatchSize  int               `yaml:"outbox_batch_size"`
	Seed             []domain.GiftSpec `yaml:"seed"`
}

func loadConfig() (*economyConfig, error) {
	path := defaultConfigPath
	if v, ok := os.LookupEnv("ECONOMY_CONFIG"); ok {
		path = v
	}
	cfg := &economyConfig{}
	if err := bootstrap.LoadYAML(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = "economy-service"
	}
	if cfg.Economy.StartingBalance == 0 {
		cfg.Economy.StartingBalance = 15
	}
	if cfg.Economy.RegiftFee == 0 {
		cfg.Economy.RegiftFee = 25
	}
	return cfg, nil
}
