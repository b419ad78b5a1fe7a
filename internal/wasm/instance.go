package wasm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/bls-bridge/internal/symbols"
)

// InstanceManager creates guest instances together with their host imports.
type InstanceManager struct {
	runtime  *Runtime
	manifest *symbols.Manifest
	logger   *zap.Logger
}

// NewInstanceManager creates a new instance manager. Exports are checked
// against the wasm section of manifest.
func NewInstanceManager(runtime *Runtime, manifest *symbols.Manifest, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:  runtime,
		manifest: manifest,
		logger:   logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID. Generated when empty.
	InstanceID string

	// Globals the guest sees through its imports.
	Environment *Environment
}

// Instance is an instantiated guest with its host import module.
type Instance struct {
	module  api.Module
	host    api.Module
	imports *Host
	memory  *Memory
	runtime *Runtime

	ID        string
	Name      string
	CreatedAt time.Time

	exports map[string]api.Function
	logger  *zap.Logger
}

// Instantiate links a fresh host import module and instantiates the compiled
// guest against it. A runtime holds at most one instance, since the import
// module name is fixed.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	env := config.Environment
	if env == nil {
		env = NewEnvironment(nil)
	}

	imports := NewHost(env, m.logger)
	hostModule, err := imports.Instantiate(ctx, m.runtime.runtime)
	if err != nil {
		return nil, err
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		_ = hostModule.Close(ctx)
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports, err := m.bindExports(module)
	if err != nil {
		_ = module.Close(ctx)
		_ = hostModule.Close(ctx)
		return nil, err
	}

	memory, err := NewMemory(module)
	if err != nil {
		_ = module.Close(ctx)
		_ = hostModule.Close(ctx)
		return nil, err
	}

	instance := &Instance{
		module:    module,
		host:      hostModule,
		imports:   imports,
		memory:    memory,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now(),
		exports:   exports,
		logger:    m.logger,
	}

	m.runtime.StoreInstance(instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// bindExports resolves every export the manifest declares and checks its
// signature.
func (m *InstanceManager) bindExports(module api.Module) (map[string]api.Function, error) {
	if module.ExportedMemory("memory") == nil {
		return nil, &FunctionNotFoundError{ModuleName: module.Name(), FunctionName: "memory"}
	}

	exports := make(map[string]api.Function, len(m.manifest.Wasm))
	for _, sym := range m.manifest.Wasm {
		fn := module.ExportedFunction(sym.Name)
		if fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: module.Name(), FunctionName: sym.Name}
		}
		if err := m.manifest.Require(symbols.Wasm, signature(sym.Name, fn.Definition())); err != nil {
			return nil, err
		}
		exports[sym.Name] = fn
	}
	return exports, nil
}

// signature describes def in manifest terms.
func signature(name string, def api.FunctionDefinition) symbols.Symbol {
	sym := symbols.Symbol{Name: name, Parameters: []string{}}
	for _, t := range def.ParamTypes() {
		sym.Parameters = append(sym.Parameters, api.ValueTypeName(t))
	}
	if results := def.ResultTypes(); len(results) > 0 {
		sym.Result = api.ValueTypeName(results[0])
	}
	return sym
}

// Host returns the import surface backing this instance.
func (i *Instance) Host() *Host {
	return i.imports
}

// Memory returns the guest memory helper.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Module returns the underlying guest module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Call invokes an export. A trap becomes a GuestError carrying whatever the
// guest threw or stored; exceptions the guest stored and then ignored on a
// successful call are logged and released.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}

	i.imports.beginCall()
	res, err := fn.Call(ctx, params...)
	thrown, uncaught := i.imports.endCall()

	if err != nil {
		return nil, &GuestError{Export: name, Message: thrown, Err: err, Exceptions: uncaught}
	}

	for _, exn := range uncaught {
		i.logger.Warn("Guest ignored host exception",
			zap.String("export", name),
			zap.Error(exn),
		)
	}

	i.logger.Debug("Export returned",
		zap.String("export", name),
		zap.Int("heap_live", i.imports.Table().Len()),
	)

	return res, nil
}

// Close closes the guest and its import module and stops the runtime
// tracking the instance.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)

	i.logger.Info("Closing Wasm instance",
		zap.String("instance_id", i.ID),
		zap.Duration("lifetime", time.Since(i.CreatedAt)),
	)

	err := i.module.Close(ctx)
	if hostErr := i.host.Close(ctx); hostErr != nil && err == nil {
		err = hostErr
	}
	return err
}

var instanceSeq atomic.Uint64

func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
