package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
)

var errScriptTimeout = errors.New("script timeout exceeded")

// navigator receives the navigations a script asks for
type navigator interface {
	loadURL(doc *Document, url string, replace bool)
	traverse(doc *Document, dir history.Direction, steps int)
}

// runtime executes the inline scripts of one document
type runtime struct {
	vm      *goja.Runtime
	doc     *Document
	nav     navigator
	timeout time.Duration
	logger  *zap.Logger
}

func newRuntime(doc *Document, nav navigator, timeout time.Duration, logger *zap.Logger) *runtime {
	r := &runtime{
		vm:      goja.New(),
		doc:     doc,
		nav:     nav,
		timeout: timeout,
		logger:  logger,
	}
	r.vm.SetMaxCallStackSize(1024)
	r.setupGlobals()
	return r
}

// run executes src. The script is interrupted when the timeout passes or ctx ends.
func (r *runtime) run(ctx context.Context, name, src string) error {
	defer r.vm.ClearInterrupt()
	if r.timeout > 0 {
		timer := time.AfterFunc(r.timeout, func() {
			r.vm.Interrupt(errScriptTimeout)
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer stop()

	_, err := r.vm.RunScript(name, src)
	return err
}

func (r *runtime) setupGlobals() {
	vm := r.vm

	// No module system or host process
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	console := vm.NewObject()
	console.Set("log", r.consoleFunc(zap.InfoLevel))
	console.Set("info", r.consoleFunc(zap.InfoLevel))
	console.Set("debug", r.consoleFunc(zap.DebugLevel))
	console.Set("warn", r.consoleFunc(zap.WarnLevel))
	console.Set("error", r.consoleFunc(zap.ErrorLevel))
	vm.Set("console", console)

	// Timers never fire: a document's scripts run once, at load
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)
	vm.Set("clearTimeout", noop)
	vm.Set("clearInterval", noop)

	vm.Set("location", r.location())
	vm.Set("history", r.history())
	vm.Set("document", r.document())
}

func (r *runtime) consoleFunc(level zapcore.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		r.logger.Log(level, joinArgs(call.Arguments),
			zap.String("source", "console"),
			zap.Stringer("pipeline", r.doc.Pipeline))
		return goja.Undefined()
	}
}

func (r *runtime) location() *goja.Object {
	vm := r.vm
	loc := vm.NewObject()

	href := func(goja.FunctionCall) goja.Value { return vm.ToValue(r.doc.URL) }
	_ = loc.DefineAccessorProperty("href",
		vm.ToValue(href),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			r.navigate(call.Argument(0).String(), false)
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)

	loc.Set("assign", func(call goja.FunctionCall) goja.Value {
		r.navigate(call.Argument(0).String(), false)
		return goja.Undefined()
	})
	loc.Set("replace", func(call goja.FunctionCall) goja.Value {
		r.navigate(call.Argument(0).String(), true)
		return goja.Undefined()
	})
	loc.Set("reload", func(goja.FunctionCall) goja.Value {
		r.nav.loadURL(r.doc, r.doc.URL, true)
		return goja.Undefined()
	})
	loc.Set("toString", href)
	return loc
}

func (r *runtime) history() *goja.Object {
	h := r.vm.NewObject()
	h.Set("back", func(goja.FunctionCall) goja.Value {
		r.nav.traverse(r.doc, history.Back, 1)
		return goja.Undefined()
	})
	h.Set("forward", func(goja.FunctionCall) goja.Value {
		r.nav.traverse(r.doc, history.Forward, 1)
		return goja.Undefined()
	})
	h.Set("go", func(call goja.FunctionCall) goja.Value {
		switch delta := int(call.Argument(0).ToInteger()); {
		case delta < 0:
			r.nav.traverse(r.doc, history.Back, -delta)
		case delta > 0:
			r.nav.traverse(r.doc, history.Forward, delta)
		default:
			r.nav.loadURL(r.doc, r.doc.URL, true)
		}
		return goja.Undefined()
	})
	return h
}

func (r *runtime) document() *goja.Object {
	vm := r.vm
	doc := vm.NewObject()
	_ = doc.DefineAccessorProperty("title",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(r.doc.Title) }),
		vm.ToValue(func(call goja.FunctionCall) goja.Value {
			r.doc.Title = cleanTitle(call.Argument(0).String())
			return goja.Undefined()
		}),
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = doc.DefineAccessorProperty("URL",
		vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(r.doc.URL) }),
		nil,
		goja.FLAG_FALSE, goja.FLAG_TRUE)
	return doc
}

// navigate resolves ref against the document URL; unresolvable URLs throw a TypeError
func (r *runtime) navigate(ref string, replace bool) {
	target, err := document.Resolve(r.doc.URL, ref)
	if err != nil {
		panic(r.vm.NewTypeError("invalid URL %q", ref))
	}
	r.nav.loadURL(r.doc, target, replace)
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
