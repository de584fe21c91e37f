package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"pursuitline/internal/scoring"
)

// Config models pursuitline.yml: the per-project G0 criterion catalog,
// decision thresholds, and RBAC role definitions.
type Config struct {
	Project struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name,omitempty" json:"name,omitempty"`
	} `yaml:"project" json:"project"`
	Assessment struct {
		Criteria   scoring.Catalog    `yaml:"criteria" json:"criteria"`
		Thresholds scoring.Thresholds `yaml:"thresholds" json:"thresholds"`
	} `yaml:"assessment" json:"assessment"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles" json:"roles"`
	} `yaml:"rbac" json:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"`
}

type RBACRole struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

// WebhookConfig describes one event delivery target. An empty Events list
// subscribes to all event types.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pl project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure. Criterion weights
// not summing to 100 is a warning surfaced by WeightWarning, not an error.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if err := c.Assessment.Criteria.Validate(); err != nil {
		return fmt.Errorf("config.assessment.criteria: %w", err)
	}
	if err := c.Assessment.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config.assessment.thresholds: %w", err)
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	return nil
}

// WeightWarning surfaces the catalog weight-sum warning, if any.
func (c *Config) WeightWarning() string {
	return c.Assessment.Criteria.WeightWarning()
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pursuitline.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultYAML), &cfg); err != nil {
		panic(fmt.Sprintf("default config template invalid: %v", err))
	}
	cfg.Project.ID = projectID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultYAML = `project:
  id: default

assessment:
  thresholds:
    go: 2.5
    conditional: 1.8

  criteria:
    - id: strategic.alignment
      name: "Strategic alignment"
      category: strategic
      description: "Fit with the firm's strategic priorities"
      weight: 10
      allowed_scores: [1, 2, 3]
    - id: market.position
      name: "Market position"
      category: strategic
      description: "Strength of our position in this market segment"
      weight: 6
      allowed_scores: [1, 2, 3]
    - id: reputation.value
      name: "Reference value"
      category: strategic
      description: "Value of the engagement as a reference or credential"
      weight: 4
      allowed_scores: [1, 2, 3]
    - id: client.relationship
      name: "Client relationship"
      category: commercial
      description: "Depth and history of the client relationship"
      weight: 8
      allowed_scores: [1, 2, 3]
    - id: client.budget
      name: "Budget confirmed"
      category: commercial
      description: "Client budget is identified and committed"
      weight: 8
      allowed_scores: [1, 3]
    - id: scope.clarity
      name: "Scope clarity"
      category: commercial
      description: "Requirements and scope are well defined"
      weight: 7
      allowed_scores: [1, 2, 3]
    - id: competition.intensity
      name: "Competitive intensity"
      category: commercial
      description: "Number and strength of competing bidders"
      weight: 6
      allowed_scores: [1, 2, 3]
    - id: win.probability
      name: "Win probability"
      category: commercial
      description: "Realistic likelihood of winning the pursuit"
      weight: 10
      allowed_scores: [1, 2, 3]
    - id: delivery.capability
      name: "Delivery capability"
      category: delivery
      description: "Proven capability to deliver the requested work"
      weight: 9
      allowed_scores: [1, 2, 3]
    - id: staffing.availability
      name: "Staffing availability"
      category: delivery
      description: "Required team is available in the timeframe"
      weight: 7
      allowed_scores: [1, 2, 3]
    - id: technical.fit
      name: "Technical fit"
      category: delivery
      description: "Match between our methods and the client's stack"
      weight: 7
      allowed_scores: [1, 2, 3]
    - id: financial.margin
      name: "Financial attractiveness"
      category: risk
      description: "Expected margin and commercial terms"
      weight: 9
      allowed_scores: [1, 2, 3]
    - id: payment.risk
      name: "Payment risk"
      category: risk
      description: "Client payment reliability and solvency"
      weight: 5
      allowed_scores: [1, 3]
    - id: contract.risk
      name: "Contractual risk"
      category: risk
      description: "Liability, IP, and termination terms"
      weight: 4
      allowed_scores: [1, 3]

rbac:
  roles:
    admin:
      description: "Full administrative access"
      permissions:
        - project.create
        - project.read
        - project.update
        - project.delete
        - project.list
        - project.config.read
        - project.config.write
        - project.events.read
        - project.dashboard.read
        - stakeholder.create
        - stakeholder.read
        - stakeholder.update
        - stakeholder.delete
        - stakeholder.link
        - pursuit.create
        - pursuit.read
        - pursuit.update
        - pursuit.comment
        - assessment.read
        - assessment.score
        - assessment.submit
        - assessment.review
        - assessment.approve
        - assessment.condition.manage
        - milestone.manage
        - document.manage
        - approvals.read
        - search.read
        - rbac.manage
    c_level:
      description: "Executive: reviews and approvals"
      permissions:
        - project.read
        - project.list
        - project.config.read
        - project.events.read
        - project.dashboard.read
        - stakeholder.read
        - pursuit.read
        - assessment.read
        - assessment.review
        - assessment.approve
        - assessment.condition.manage
        - approvals.read
        - search.read
    bd_manager:
      description: "Business development: runs pursuits and assessments"
      permissions:
        - project.create
        - project.read
        - project.update
        - project.list
        - project.config.read
        - project.dashboard.read
        - stakeholder.create
        - stakeholder.read
        - stakeholder.update
        - stakeholder.link
        - pursuit.create
        - pursuit.read
        - pursuit.update
        - pursuit.comment
        - assessment.read
        - assessment.score
        - assessment.submit
        - milestone.manage
        - document.manage
        - search.read
    viewer:
      description: "Read-only access"
      permissions:
        - project.read
        - project.list
        - project.dashboard.read
        - stakeholder.read
        - pursuit.read
        - assessment.read
        - search.read
`
