// Package capability implements the capability resolver: the algorithm that
// turns a consumer instance's abstract requirements into a concrete,
// source-tracked environment variable map (spec.md §4.3).
package capability

import (
	"fmt"

	"github.com/ushadow-io/ushadow/pkg/instances"
	"github.com/ushadow-io/ushadow/pkg/lifecycle"
	"github.com/ushadow-io/ushadow/pkg/settings"
	"github.com/ushadow-io/ushadow/pkg/templates"
)

// TemplateLookup is the subset of *templates.Registry the resolver needs.
type TemplateLookup interface {
	Get(id string) (templates.Template, bool)
	List() []templates.Template
}

// InstanceLookup is the subset of *instances.Store the resolver needs.
type InstanceLookup interface {
	Get(id string) (instances.Instance, bool)
	GetProvider(consumerID, capability string) (instances.Wiring, bool)
	GetDefaults() map[string]string
}

// SettingsLookup is the subset of *settings.Store the resolver needs,
// including GetOrGenerate for the generate_if_missing config fields.
type SettingsLookup interface {
	settings.Getter
	GetOrGenerate(path string, gen settings.Generator) (value string, created bool, err error)
}

// Resolver implements the provider-selection and env-map resolution
// algorithm of spec.md §4.3.
type Resolver struct {
	Templates TemplateLookup
	Instances InstanceLookup
	Settings  SettingsLookup
	// Mode is the current wizard mode ("cloud" or "local"), used in provider
	// selection step (d) when no explicit wiring, default, or settings
	// selection exists.
	Mode templates.Mode
}

// New builds a Resolver over the given stores.
func New(tpl TemplateLookup, inst InstanceLookup, st SettingsLookup, mode templates.Mode) *Resolver {
	return &Resolver{Templates: tpl, Instances: inst, Settings: st, Mode: mode}
}

// selectedProvider is the outcome of step 1: either a wired/defaulted
// instance (isInstance=true), or an ambient singleton template with no
// backing instance (isInstance=false).
type selectedProvider struct {
	template   templates.Template
	instance   instances.Instance
	isInstance bool
}

// ResolveForInstance runs the full algorithm for one consumer instance,
// producing a map from final environment variable name to its resolved
// value with source tracking. On any missing required input the returned
// error is a *ResolutionError aggregating every miss found.
func (r *Resolver) ResolveForInstance(instanceID string) (map[string]lifecycle.ResolvedVar, error) {
	consumer, ok := r.Instances.Get(instanceID)
	if !ok {
		return nil, fmt.Errorf("instance %q not found", instanceID)
	}
	consumerTemplate, ok := r.Templates.Get(consumer.TemplateID)
	if !ok {
		return nil, fmt.Errorf("template %q not found for instance %q", consumer.TemplateID, instanceID)
	}

	result := map[string]lifecycle.ResolvedVar{}
	resErr := &ResolutionError{InstanceID: instanceID}

	for _, capName := range consumerTemplate.Requires {
		provider, found := r.selectProvider(consumer, capName)
		if !found {
			resErr.add(MissingInput{
				Capability: capName,
				Reason:     fmt.Sprintf("required capability %q unresolved: no wiring, default, settings selection, or %s-mode provider", capName, r.Mode),
			})
			continue
		}

		for _, em := range provider.template.EnvMaps {
			value, source, sourcePath, ok := r.resolveEnvMap(provider, em)
			if !ok {
				if em.Required {
					resErr.add(MissingInput{
						Capability:   capName,
						LogicalKey:   em.LogicalKey,
						EnvVar:       em.EnvVarName(),
						SettingsPath: em.SettingsPath,
						Reason:       fmt.Sprintf("required input %q for capability %q has no value", em.LogicalKey, capName),
					})
				}
				continue
			}

			varName := em.EnvVarName()
			if mapped, ok := consumerTemplate.EnvMapping[varName]; ok {
				varName = mapped
			}
			result[varName] = lifecycle.ResolvedVar{Value: value, Source: source, SourcePath: sourcePath}
		}
	}

	if !resErr.empty() {
		return result, resErr
	}
	return result, nil
}

// selectProvider runs step 1 of the algorithm (a)-(e).
func (r *Resolver) selectProvider(consumer instances.Instance, capName string) (selectedProvider, bool) {
	// (a) explicit wiring.
	if w, ok := r.Instances.GetProvider(consumer.ID, capName); ok {
		if inst, ok := r.Instances.Get(w.SourceInstanceID); ok {
			if tpl, ok := r.Templates.Get(inst.TemplateID); ok {
				return selectedProvider{template: tpl, instance: inst, isInstance: true}, true
			}
		}
	}

	// (b) defaults map.
	if defaultID, ok := r.Instances.GetDefaults()[capName]; ok && defaultID != "" {
		if inst, ok := r.Instances.Get(defaultID); ok {
			if tpl, ok := r.Templates.Get(inst.TemplateID); ok {
				return selectedProvider{template: tpl, instance: inst, isInstance: true}, true
			}
		}
	}

	// (c) settings path selected_providers.<capability> names a known template:
	// used as an ambient singleton, with no backing instance.
	if selectedTemplateID := r.Settings.GetString("selected_providers."+capName, ""); selectedTemplateID != "" {
		if tpl, ok := r.Templates.Get(selectedTemplateID); ok {
			return selectedProvider{template: tpl, isInstance: false}, true
		}
	}

	// (d) default provider for this capability matching the current mode.
	for _, tpl := range r.Templates.List() {
		if tpl.Provides == capName && tpl.Mode == r.Mode {
			return selectedProvider{template: tpl, isInstance: false}, true
		}
	}

	// (e) fail.
	return selectedProvider{}, false
}

// resolveEnvMap runs step 2 of the algorithm (a)-(c) for one env_map entry.
func (r *Resolver) resolveEnvMap(provider selectedProvider, em templates.EnvMap) (value string, source lifecycle.Source, sourcePath string, ok bool) {
	// (a) per-instance override, only when the provider is a real instance.
	if provider.isInstance {
		if v, present := provider.instance.Config[em.LogicalKey]; present {
			return v.ResolveString(r.Settings), lifecycle.SourceOverride, "", true
		}
	}

	// (b) settings store at env_map.settings_path.
	if em.SettingsPath != "" {
		if v, present := r.Settings.Get(em.SettingsPath); present {
			return fmt.Sprintf("%v", v), lifecycle.SourceSettings, em.SettingsPath, true
		}
	}

	// (c) the env_map's default.
	if em.Default != "" {
		return em.Default, lifecycle.SourceDefault, "", true
	}

	return "", "", "", false
}

// ResolveConfigSchema resolves a template's non-capability config_schema
// fields through override -> settings path -> default, synthesizing and
// persisting a fresh value via the field's generate_if_missing generator
// when nothing else produced one (spec.md §4.3, final paragraph).
func (r *Resolver) ResolveConfigSchema(instanceID string) (map[string]lifecycle.ResolvedVar, error) {
	inst, ok := r.Instances.Get(instanceID)
	if !ok {
		return nil, fmt.Errorf("instance %q not found", instanceID)
	}
	tpl, ok := r.Templates.Get(inst.TemplateID)
	if !ok {
		return nil, fmt.Errorf("template %q not found", inst.TemplateID)
	}

	out := map[string]lifecycle.ResolvedVar{}
	for _, field := range tpl.ConfigSchema {
		if v, present := inst.Config[field.Key]; present {
			out[field.Key] = lifecycle.ResolvedVar{Value: v.ResolveString(r.Settings), Source: lifecycle.SourceOverride}
			continue
		}
		if field.SettingsPath != "" {
			if raw, present := r.Settings.Get(field.SettingsPath); present {
				out[field.Key] = lifecycle.ResolvedVar{Value: fmt.Sprintf("%v", raw), Source: lifecycle.SourceSettings, SourcePath: field.SettingsPath}
				continue
			}
			if field.GenerateIfMissing != "" {
				gen, known := settings.GeneratorByName(field.GenerateIfMissing)
				if !known {
					return nil, fmt.Errorf("unknown generator %q for field %q", field.GenerateIfMissing, field.Key)
				}
				value, _, err := r.Settings.GetOrGenerate(field.SettingsPath, gen)
				if err != nil {
					return nil, fmt.Errorf("generate %s: %w", field.Key, err)
				}
				out[field.Key] = lifecycle.ResolvedVar{Value: value, Source: lifecycle.SourceSettings, SourcePath: field.SettingsPath}
				continue
			}
		}
		if field.Default != "" {
			out[field.Key] = lifecycle.ResolvedVar{Value: field.Default, Source: lifecycle.SourceDefault}
			continue
		}
		if !field.Optional {
			return nil, fmt.Errorf("config field %q has no value and no default", field.Key)
		}
	}
	return out, nil
}
