package loader

import (
	"context"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
)

// bindAPI exposes api to extension code; caller holds m.mu
func (m *gojaModule) bindAPI(api *capability.API) *goja.Object {
	vm := m.vm
	obj := vm.NewObject()

	uiObj := vm.NewObject()
	_ = uiObj.Set("registerView", func(call goja.FunctionCall) goja.Value {
		api.UI.RegisterView(call.Argument(0).String(), m.toComponent(call.Argument(1)))
		return goja.Undefined()
	})
	_ = uiObj.Set("toast", func(call goja.FunctionCall) goja.Value {
		toastType := ""
		if t := call.Argument(1); !goja.IsUndefined(t) && !goja.IsNull(t) {
			toastType = t.String()
		}
		api.UI.Toast(call.Argument(0).String(), toastType)
		return goja.Undefined()
	})
	_ = obj.Set("ui", uiObj)

	ipcObj := vm.NewObject()
	_ = ipcObj.Set("invoke", func(call goja.FunctionCall) goja.Value {
		channel := call.Argument(0).String()
		args := exportArgs(call.Arguments, 1)
		return m.async(func(ctx context.Context) (interface{}, error) {
			return api.IPC.Invoke(ctx, channel, args...)
		})
	})
	_ = ipcObj.Set("on", func(call goja.FunctionCall) goja.Value {
		channel := call.Argument(0).String()
		cb, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("ipc.on callback must be a function"))
		}
		unsubscribe, err := api.IPC.On(channel, func(args ...interface{}) {
			m.enqueue(func() {
				vals := make([]goja.Value, len(args))
				for i, a := range args {
					vals[i] = m.vm.ToValue(a)
				}
				_, err := cb(goja.Undefined(), vals...)
				m.logCallbackError("ipc:"+channel, err)
			})
		})
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			unsubscribe()
			return goja.Undefined()
		})
	})
	_ = obj.Set("ipc", ipcObj)

	launcherObj := vm.NewObject()
	_ = launcherObj.Set("getActiveProcesses", func(goja.FunctionCall) goja.Value {
		return m.async(func(ctx context.Context) (interface{}, error) {
			return api.Launcher.GetActiveProcesses(ctx)
		})
	})
	_ = launcherObj.Set("getProcessStats", func(call goja.FunctionCall) goja.Value {
		pid := int(call.Argument(0).ToInteger())
		return m.async(func(ctx context.Context) (interface{}, error) {
			return api.Launcher.GetProcessStats(ctx, pid)
		})
	})
	_ = obj.Set("launcher", launcherObj)

	storageObj := vm.NewObject()
	_ = storageObj.Set("get", func(call goja.FunctionCall) goja.Value {
		v := api.Storage.Get(call.Argument(0).String())
		if v == nil {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	_ = storageObj.Set("set", func(call goja.FunctionCall) goja.Value {
		if err := api.Storage.Set(call.Argument(0).String(), call.Argument(1).Export()); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("storage", storageObj)

	meta := vm.NewObject()
	_ = meta.Set("id", api.Meta.ID)
	_ = meta.Set("localPath", api.Meta.LocalPath)
	m.freeze(meta)
	_ = obj.Set("meta", meta)

	return obj
}

// async runs fn on a host goroutine and settles a promise on the VM
func (m *gojaModule) async(fn func(ctx context.Context) (interface{}, error)) goja.Value {
	promise, resolve, reject := m.vm.NewPromise()
	go func() {
		result, err := fn(m.ctx)
		m.enqueue(func() {
			if err != nil {
				_ = reject(m.vm.NewGoError(err))
				return
			}
			_ = resolve(result)
		})
	}()
	return m.vm.ToValue(promise)
}

// freeze applies Object.freeze; caller holds m.mu
func (m *gojaModule) freeze(obj *goja.Object) {
	object := m.vm.Get("Object").ToObject(m.vm)
	if freeze, ok := goja.AssertFunction(object.Get("freeze")); ok {
		_, _ = freeze(object, obj)
	}
}

func exportArgs(args []goja.Value, from int) []interface{} {
	if len(args) <= from {
		return nil
	}
	out := make([]interface{}, 0, len(args)-from)
	for _, a := range args[from:] {
		out = append(out, a.Export())
	}
	return out
}
