package domain

// Profile describes the consumer the personalization gate and the
// recommender tailor results to.
type Profile struct {
	Goals      []string `yaml:"goals" json:"goals"`
	Stack      []string `yaml:"stack" json:"stack"`
	Priorities []string `yaml:"priorities" json:"priorities"`
}

// Pillar is a topic bucket with its trigger keywords.
type Pillar struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}
