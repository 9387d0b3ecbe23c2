package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"gopkg.in/yaml.v3"
)

const defaultProfile = "default"

// ClustersConfig lists customers to reindex per cluster:
//
//	{
//	  clusters: [
//	    {name: "us-east-1-prod", customers: [{id: "sunbit"}, {id: "cvs", profile: "voice"}]}
//	  ]
//	}
type ClustersConfig struct {
	Clusters []ClusterConfig `mapstructure:"clusters"`
}

type ClusterConfig struct {
	Name      string           `mapstructure:"name"`
	Customers []CustomerConfig `mapstructure:"customers"`
}

type CustomerConfig struct {
	ID      string `mapstructure:"id"`
	Profile string `mapstructure:"profile"`
}

// LoadClusters reads YAML (.yaml, .yml) or HJSON (anything else, plain JSON included) clusters config
func LoadClusters(path string) (*ClustersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading clusters config file %s: %w", path, err)
	}
	return ParseClusters(data, filepath.Ext(path))
}

func ParseClusters(data []byte, ext string) (*ClustersConfig, error) {
	var raw any = data
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		m := map[string]any{}
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("error parsing yaml clusters config: %w", err)
		}
		raw = m
	}
	cfg := &ClustersConfig{}
	if err := utils.ParseObject(raw, cfg); err != nil {
		return nil, fmt.Errorf("invalid clusters config: %w", err)
	}
	for i := range cfg.Clusters {
		cluster := &cfg.Clusters[i]
		if cluster.Name == "" {
			return nil, fmt.Errorf("cluster #%d has no name", i+1)
		}
		for j := range cluster.Customers {
			customer := &cluster.Customers[j]
			if customer.ID == "" {
				return nil, fmt.Errorf("customer #%d of cluster %s has no id", j+1, cluster.Name)
			}
			if customer.Profile == "" {
				customer.Profile = defaultProfile
			}
		}
	}
	return cfg, nil
}
