// Package starter builds auto-configuration modules: a typed properties struct
// bound from a property prefix, registered as a bean, plus the classes the
// module derives from it.
package starter

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/01fortes/gocdi/pkg/container"
)

// AutoModule binds the properties under Prefix into a *T, registers it as a
// singleton instance and lets Configure contribute more classes from it.
//
//	starter.AutoModule[DBProperties]{
//	    Name:   "database",
//	    Prefix: "db",
//	    Configure: func(p *DBProperties) ([]*container.ClassRef, error) {
//	        return []*container.ClassRef{container.Instance(openPool(p))}, nil
//	    },
//	}.Module()
type AutoModule[T any] struct {
	// Name of this auto-configuration
	Name string
	// Prefix for all properties in this group
	Prefix string
	// Condition guards the module. Nil means EnabledByDefault(Prefix).
	Condition container.Condition
	// PropertiesOptions customize the properties bean, e.g. WithName
	PropertiesOptions []container.ClassOption
	// Configure registers classes built from the bound properties
	Configure func(props *T) ([]*container.ClassRef, error)
}

// Module returns the container module for this auto-configuration
func (a AutoModule[T]) Module() container.Module {
	condition := a.Condition
	if condition == nil {
		condition = EnabledByDefault(a.Prefix)
	}
	return container.Module{
		Name:      a.Name,
		Condition: condition,
		Configure: func(ctx container.ConditionContext) ([]*container.ClassRef, error) {
			props := new(T)
			flat := ctx.PropertiesWithPrefix(a.Prefix)
			if err := Bind(flat, props); err != nil {
				return nil, container.ConfigurationError("binding "+a.Prefix+" properties", err)
			}
			logConfig(a.Name, flat)

			classes := []*container.ClassRef{container.Instance(props, a.PropertiesOptions...)}
			if a.Configure != nil {
				more, err := a.Configure(props)
				if err != nil {
					return nil, err
				}
				classes = append(classes, more...)
			}
			return classes, nil
		},
	}
}

// EnabledByDefault is true unless <prefix>.enabled is false
func EnabledByDefault(prefix string) container.Condition {
	return func(ctx container.ConditionContext) bool {
		v, ok := ctx.Property(prefix + ".enabled")
		if !ok {
			return true
		}
		enabled, err := strconv.ParseBool(v)
		return err != nil || enabled
	}
}

// Bind decodes flat dotted properties into target. Values are plain YAML
// scalars, so "8080" fills an int and "5s" a time.Duration. Keys made only of
// indexes ("hosts.0", "hosts.1") become lists. Struct fields follow yaml tags.
func Bind(props map[string]string, target any) error {
	if len(props) == 0 {
		return nil
	}
	tree := make(map[string]any)
	for key, value := range props {
		parts := strings.Split(key, ".")
		current := tree
		for i, part := range parts {
			if i == len(parts)-1 {
				if _, nested := current[part].(map[string]any); !nested {
					current[part] = value
				}
				break
			}
			// Create nested map if needed
			next, ok := current[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				current[part] = next
			}
			current = next
		}
	}
	if err := toNode(tree).Decode(target); err != nil {
		return fmt.Errorf("error decoding properties: %w", err)
	}
	return nil
}

func toNode(value any) *yaml.Node {
	tree, ok := value.(map[string]any)
	if !ok {
		// untagged so the decoder resolves ints, bools and floats
		return &yaml.Node{Kind: yaml.ScalarNode, Value: value.(string)}
	}

	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}

	if indexes, ok := sequenceIndexes(keys); ok {
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, i := range indexes {
			node.Content = append(node.Content, toNode(tree[strconv.Itoa(i)]))
		}
		return node
	}

	sort.Strings(keys)
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			toNode(tree[k]))
	}
	return node
}

// sequenceIndexes reports whether keys are exactly 0..n-1
func sequenceIndexes(keys []string) ([]int, bool) {
	indexes := make([]int, 0, len(keys))
	for _, k := range keys {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return nil, false
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for want, got := range indexes {
		if want != got {
			return nil, false
		}
	}
	return indexes, true
}

// logConfig logs the bound properties, masking sensitive values
func logConfig(name string, props map[string]string) {
	masked := make([]any, 0, 2*len(props))
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := props[k]
		if isSensitive(k) {
			v = "******"
		}
		masked = append(masked, k, v)
	}
	slog.Info("Auto-configuration "+name, slog.Group("config", masked...))
}

// isSensitive returns true if the property name suggests it contains sensitive information
func isSensitive(name string) bool {
	lowerName := strings.ToLower(name)
	return strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "token") ||
		strings.Contains(lowerName, "key") && !strings.Contains(lowerName, "public")
}
