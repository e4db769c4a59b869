package ai

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"graph-ingestion/internal/domain/model"
)

// Catalog holds the static credential list and the per-category model
// lists. Loaded once at startup; immutable afterwards.
type Catalog struct {
	Credentials []model.Credential
	Categories  map[model.TaskCategory][]model.ModelDescriptor
}

var knownCategories = map[string]model.TaskCategory{
	"text_to_text":       model.TaskTextToText,
	"multimodal_to_text": model.TaskMultimodalToText,
	"text_to_audio":      model.TaskTextToAudio,
	"image_generation":   model.TaskImageGeneration,
}

type modelConfigDoc struct {
	Tasks map[string]struct {
		Models []string `yaml:"models"`
	} `yaml:"tasks"`
	Models map[string]struct {
		Tokens struct {
			OutputLimit int `yaml:"output_limit"`
		} `yaml:"tokens"`
	} `yaml:"models"`
}

// LoadCatalog reads the credential CSV and the model-config YAML. An empty
// credential list or a category with no models is a fatal configuration
// error.
func LoadCatalog(csvPath, yamlPath string) (*Catalog, error) {
	creds, err := loadCredentials(csvPath)
	if err != nil {
		return nil, err
	}
	cats, err := loadModelConfig(yamlPath)
	if err != nil {
		return nil, err
	}
	return &Catalog{Credentials: creds, Categories: cats}, nil
}

// loadCredentials expects a header row containing an "api" column; blank
// rows are skipped.
func loadCredentials(path string) ([]model.Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credential csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read credential csv header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(strings.ToLower(name)) == "api" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("credential csv %s: missing 'api' column", path)
	}

	var creds []model.Credential
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read credential csv: %w", err)
		}
		if col >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[col])
		if key == "" {
			continue
		}
		creds = append(creds, model.Credential(key))
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("credential csv %s: no credentials found", path)
	}
	return creds, nil
}

func loadModelConfig(path string) (map[model.TaskCategory][]model.ModelDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config: %w", err)
	}
	var doc modelConfigDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse model config: %w", err)
	}
	if len(doc.Tasks) == 0 {
		return nil, fmt.Errorf("model config %s: no tasks defined", path)
	}

	out := make(map[model.TaskCategory][]model.ModelDescriptor, len(doc.Tasks))
	for name, task := range doc.Tasks {
		cat, ok := knownCategories[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("model config %s: unknown task category %q", path, name)
		}
		if len(task.Models) == 0 {
			return nil, fmt.Errorf("model config %s: task %q has no models", path, name)
		}
		// List order defines the capability tier; the last entry is best.
		descs := make([]model.ModelDescriptor, 0, len(task.Models))
		for tier, mName := range task.Models {
			d := model.ModelDescriptor{Name: mName, Tier: tier}
			if meta, ok := doc.Models[mName]; ok {
				d.OutputLimit = meta.Tokens.OutputLimit
			}
			descs = append(descs, d)
		}
		out[cat] = descs
	}
	return out, nil
}

// Best returns the highest-tier model for a category.
func (c *Catalog) Best(cat model.TaskCategory) (model.ModelDescriptor, bool) {
	descs := c.Categories[cat]
	if len(descs) == 0 {
		return model.ModelDescriptor{}, false
	}
	return descs[len(descs)-1], true
}
