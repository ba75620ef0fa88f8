package config

type PipelineNode struct {
	Module   string         `yaml:"module"`
	Operator string         `yaml:"operator"`
	Args     map[string]any `yaml:"args"`
}

type Pipeline struct {
	Identifier     string `yaml:"name"`
	Description    string `yaml:"description"`
	CollectionName string `yaml:"collection"`

	Nodes []PipelineNode `yaml:"nodes"`
}

type PipelineConfig struct {
	Pipelines map[string]Pipeline `yaml:"pipelines"`
}
