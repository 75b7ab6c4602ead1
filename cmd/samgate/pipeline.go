package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/samgate/adapters/fragment"
	"github.com/artpar/samgate/app"
	"github.com/artpar/samgate/config"
)

// resolveTemplate runs the template pipeline the way serve would, without a
// server. The positional template argument overrides the configured path;
// parameters, stage and gateway selection still come from the config when
// one is available.
func resolveTemplate(templateArg string) (*app.BuildOutput, string, error) {
	templatePath := templateArg

	var pcfg app.PipelineConfig
	if cfg, err := config.LoadWithFallback(cfgFile); err == nil {
		if templatePath == "" {
			templatePath = cfg.Template.Path
		}
		pcfg = app.PipelineConfig{
			Parameters:       cfg.Template.Parameters,
			Stage:            cfg.Template.Stage,
			GatewayID:        cfg.Template.GatewayID,
			BinaryMediaTypes: cfg.Template.BinaryMediaTypes,
		}
	}
	if templatePath == "" {
		return nil, "", fmt.Errorf("no template: pass one as an argument or configure template.path")
	}
	pcfg.TemplatePath = templatePath

	fragments := fragment.NewLoader(
		fragment.NewFileLoader(filepath.Dir(templatePath)),
		fragment.NewS3Loader(fragment.S3Options{}),
	)

	pipeline := app.NewPipeline(app.PipelineDeps{Fragments: fragments}, pcfg)
	out, err := pipeline.Build(context.Background())
	if err != nil {
		return nil, templatePath, err
	}
	return out, templatePath, nil
}

func readTemplate(templateArg string) ([]byte, string, error) {
	templatePath := templateArg
	if templatePath == "" {
		if cfg, err := config.LoadWithFallback(cfgFile); err == nil {
			templatePath = cfg.Template.Path
		}
	}
	if templatePath == "" {
		return nil, "", fmt.Errorf("no template: pass one as an argument or configure template.path")
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, templatePath, err
	}
	return raw, templatePath, nil
}
