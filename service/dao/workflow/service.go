package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/chemflow/internal/yml"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/model/graph"
	"github.com/viant/chemflow/model/state"
	"github.com/viant/chemflow/model/types"
	"github.com/viant/chemflow/policy"
	"github.com/viant/chemflow/service/dao/workflow/parameters"
	"github.com/viant/chemflow/service/meta"
	"gopkg.in/yaml.v3"
)

// Service loads and decodes workflow documents
type Service struct {
	metaService *meta.Service
	cache       map[string]*model.Workflow
	mux         sync.RWMutex
}

// DecodeYAML decodes and validates a workflow from YAML
func (s *Service) DecodeYAML(encoded []byte) (*model.Workflow, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(encoded, &node); err != nil {
		return nil, &types.GraphError{Issues: []string{err.Error()}}
	}
	return s.ParseWorkflow("", &node)
}

// Load loads a workflow from YAML at the specified URL
func (s *Service) Load(ctx context.Context, URL string) (*model.Workflow, error) {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	s.mux.RLock()
	cached, ok := s.cache[URL]
	s.mux.RUnlock()
	if ok {
		return cached, nil
	}
	var node yaml.Node
	if err := s.metaService.Load(ctx, URL, &node); err != nil {
		return nil, fmt.Errorf("failed to load workflow from %s: %w", URL, err)
	}
	workflow, err := s.ParseWorkflow(URL, &node)
	if err != nil {
		return nil, err
	}
	s.Upsert(URL, workflow)
	return workflow, nil
}

// Upsert stores a decoded workflow under location
func (s *Service) Upsert(location string, workflow *model.Workflow) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.cache[location] = workflow
}

// Refresh discards a cached workflow so the next Load reads it again
func (s *Service) Refresh(location string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.cache, location)
}

// ParseWorkflow converts a YAML node into a validated workflow
func (s *Service) ParseWorkflow(URL string, node *yaml.Node) (*model.Workflow, error) {
	workflow := &model.Workflow{
		Source: &model.Source{URL: URL},
		Name:   getWorkflowNameFromURL(URL),
	}
	if err := parseWorkflow((*yml.Node)(node).Root(), workflow); err != nil {
		return nil, &types.GraphError{Workflow: workflow.Name, Issues: []string{err.Error()}}
	}
	if workflow.Name == "" {
		workflow.Name = "workflow"
	}
	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	return workflow, nil
}

func getWorkflowNameFromURL(URL string) string {
	if URL == "" {
		return ""
	}
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parseWorkflow(root *yml.Node, workflow *model.Workflow) error {
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("workflow document should be a mapping")
	}
	return root.Pairs(func(key string, valueNode *yml.Node) error {
		switch strings.ToLower(key) {
		case "name":
			workflow.Name = valueNode.Value
		case "description":
			workflow.Description = valueNode.Value
		case "version":
			workflow.Version = valueNode.Value
		case "init":
			init, err := parseParameters(valueNode, false)
			if err != nil {
				return fmt.Errorf("failed to parse init: %w", err)
			}
			workflow.Init = init
		case "stages":
			if valueNode.Kind != yaml.MappingNode {
				return fmt.Errorf("stages should be a mapping")
			}
			return valueNode.Pairs(func(name string, stageNode *yml.Node) error {
				stage, err := parseStage(name, stageNode)
				if err != nil {
					return err
				}
				workflow.Stages = append(workflow.Stages, stage)
				return nil
			})
		default:
			return fmt.Errorf("line %d: unknown workflow field %q", valueNode.Line, key)
		}
		return nil
	})
}

func parseStage(name string, node *yml.Node) (*graph.Stage, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("stage %s should be a mapping", name)
	}
	stage := &graph.Stage{Name: name}
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		var err error
		switch strings.ToLower(key) {
		case "engine":
			stage.Engine = valueNode.Value
		case "host":
			stage.Host = valueNode.Value
		case "description":
			stage.Description = valueNode.Value
		case "dependson":
			stage.DependsOn, err = valueNode.Strings()
		case "outputs":
			stage.Outputs, err = valueNode.Strings()
		case "params":
			stage.Params, err = parseParameters(valueNode, true)
		case "retry":
			stage.Retry = &policy.Retry{}
			err = (*yaml.Node)(valueNode).Decode(stage.Retry)
		default:
			err = fmt.Errorf("line %d: unknown field %q", valueNode.Line, key)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	return stage, nil
}

// parseParameters converts a YAML mapping into ordered parameters; keys may declare a
// kind as name[kind]. References are recognised only when allowed.
func parseParameters(node *yml.Node, allowReferences bool) (state.Parameters, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: parameters node should be a mapping", node.Line)
	}
	var params state.Parameters
	err := node.Pairs(func(key string, valueNode *yml.Node) error {
		parameter, err := parameters.Parse([]byte(key))
		if err != nil {
			return fmt.Errorf("failed to parse parameter %q: %w", key, err)
		}
		parameter.Value = valueNode.Interface()
		declared := parameter.Kind
		if text, ok := parameter.Value.(string); ok && allowReferences {
			if parameter.References, err = parameters.ParseReferences(text); err != nil {
				return fmt.Errorf("parameter %s: %w", parameter.Name, err)
			}
		}
		switch {
		case declared != "":
		case parameter.IsReference():
			parameter.Kind = state.KindReference
		case valueNode.Kind == yaml.ScalarNode:
			parameter.Kind = state.KindOf(parameter.Value)
		}
		if declared == state.KindNumber && !parameter.IsReference() {
			if parameter.Value, err = parameter.Resolve(nil); err != nil {
				return err
			}
		}
		params = append(params, parameter)
		return nil
	})
	return params, err
}

// New creates a new workflow service instance
func New(metaService *meta.Service) *Service {
	if metaService == nil {
		metaService = meta.New(nil, "")
	}
	return &Service{
		metaService: metaService,
		cache:       make(map[string]*model.Workflow),
	}
}
