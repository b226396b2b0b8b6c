package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/eventloop"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/hangmonitor"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/resources"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

type scriptSettings struct {
	enabled bool
	timeout time.Duration
}

type hosted struct {
	doc  *Document
	hang *hangmonitor.Registration
}

// thread is one script actor. Everything but the hang monitor runs on the
// goroutine that called run.
type thread struct {
	receiver eventloop.Receiver
	out      *constellation.Proxy
	fetcher  Fetcher
	monitor  *hangmonitor.Monitor
	cfg      Config
	scripts  scriptSettings
	logger   *zap.Logger

	docs map[id.PipelineID]*hosted
}

func (t *thread) run(ctx context.Context, first eventloop.NewPipeline) error {
	defer t.receiver.Close()
	defer t.shutdown()

	t.dispatch(ctx, first)
	for {
		t.idle()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.receiver.Exiting():
			t.logger.Debug("Event loop exiting", zap.Int("documents", len(t.docs)))
			return nil
		case msg, ok := <-t.receiver.Messages():
			if !ok {
				return nil
			}
			t.busy()
			if _, exit := msg.(eventloop.Exit); exit {
				t.logger.Debug("Event loop exiting", zap.Int("documents", len(t.docs)))
				return nil
			}
			t.dispatch(ctx, msg)
		}
	}
}

// dispatch handles one message. A panic crashes only the document it was for.
func (t *thread) dispatch(ctx context.Context, msg eventloop.Message) {
	var pid id.PipelineID
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Document panicked",
				zap.Stringer("pipeline", pid),
				zap.Any("panic", r))
			t.crash(pid, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch m := msg.(type) {
	case eventloop.NewPipeline:
		pid = m.Pipeline
		t.load(ctx, m)
	case eventloop.ExitPipeline:
		pid = m.Pipeline
		t.exitPipeline(m.Pipeline, "exited")
	case eventloop.SetActivity:
		pid = m.Pipeline
		if h, ok := t.docs[m.Pipeline]; ok {
			h.doc.Active = m.Active
		}
	default:
		t.logger.Warn("Unknown event loop message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (t *thread) load(ctx context.Context, m eventloop.NewPipeline) {
	if _, exists := t.docs[m.Pipeline]; exists {
		t.logger.Warn("Pipeline already hosted", zap.Stringer("pipeline", m.Pipeline))
		return
	}

	doc := &Document{
		Pipeline:        m.Pipeline,
		BrowsingContext: m.BrowsingContext,
		TopLevel:        m.TopLevel,
		Parent:          m.Parent,
		Generation:      m.Generation,
		LoadID:          m.LoadID,
		URL:             m.URL,
		Active:          true,
	}
	h := &hosted{doc: doc}
	t.docs[m.Pipeline] = h

	if t.monitor != nil {
		h.hang = t.monitor.Register(m.Pipeline, t.cfg.HangTimeout)
		t.send(constellation.RegisterBackgroundHangMonitor{Pipeline: m.Pipeline, Monitor: h.hang})
	}

	// network time is not script time
	if h.hang != nil {
		h.hang.NotifyWait()
	}
	resp, substituted, err := t.fetch(ctx, m.URL)
	if h.hang != nil {
		h.hang.NotifyActivity()
	}
	if err != nil {
		if ctx.Err() == nil {
			t.crash(m.Pipeline, err.Error())
		}
		return
	}

	page, err := parse(resp, resp.URL)
	if err != nil {
		t.crash(m.Pipeline, err.Error())
		return
	}

	doc.Title = page.title
	report := constellation.LoadComplete{
		Pipeline:   m.Pipeline,
		Generation: m.Generation,
		Title:      page.title,
	}
	if !substituted && resp.URL != m.URL {
		doc.URL = resp.URL
		report.URL = resp.URL
	}
	t.send(report)

	fields := []zap.Field{
		zap.Stringer("pipeline", m.Pipeline),
		zap.String("url", doc.URL),
		zap.Stringer("load_id", m.LoadID),
		zap.Int("frames", len(page.frames)),
		zap.Int("scripts", len(page.scripts)),
	}
	if started, err := m.LoadID.Started(); err == nil {
		fields = append(fields, zap.Duration("elapsed", time.Since(started)))
	}
	t.logger.Debug("Document loaded", fields...)

	for _, src := range page.frames {
		t.send(constellation.ScriptLoadedIFrame{Parent: m.Pipeline, URL: src})
	}

	if t.scripts.enabled && len(page.scripts) > 0 {
		t.runScripts(ctx, doc, page.scripts)
	}
}

// fetch loads target, falling back to an error document the loader renders itself
func (t *thread) fetch(ctx context.Context, target string) (*resources.Response, bool, error) {
	resp, err := t.fetcher.Fetch(ctx, target)
	if err == nil {
		return resp, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	reason := failureReason(err)
	t.logger.Info("Document load failed, showing error page",
		zap.String("url", target),
		zap.String("reason", reason),
		zap.Error(err))

	resp, err = t.fetcher.Fetch(ctx, document.ErrorURL(reason, target))
	if err != nil {
		return nil, true, fmt.Errorf("render error page for %s: %w", target, err)
	}
	return resp, true, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, resources.ErrHTTPStatus):
		return "http-error"
	case errors.Is(err, resources.ErrUnsupportedScheme):
		return "unsupported-scheme"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network-error"
	}
}

func (t *thread) runScripts(ctx context.Context, doc *Document, scripts []string) {
	rt := newRuntime(doc, t, t.scripts.timeout, t.logger)
	for i, src := range scripts {
		err := rt.run(ctx, fmt.Sprintf("%s#script%d", doc.URL, i), src)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			t.logger.Warn("Script interrupted",
				zap.Stringer("pipeline", doc.Pipeline),
				zap.Int("script", i),
				zap.Duration("timeout", t.scripts.timeout))
			continue
		}
		t.logger.Warn("Script failed",
			zap.Stringer("pipeline", doc.Pipeline),
			zap.Int("script", i),
			zap.Error(err))
	}
}

func (t *thread) loadURL(doc *Document, url string, replace bool) {
	t.send(constellation.LoadURL{
		BrowsingContext: doc.BrowsingContext,
		URL:             url,
		Replace:         replace,
		Source:          doc.Pipeline,
	})
}

func (t *thread) traverse(doc *Document, dir history.Direction, steps int) {
	t.send(constellation.Navigate{
		Direction: dir,
		TopLevel:  doc.TopLevel,
		Steps:     steps,
		Source:    doc.Pipeline,
	})
}

// exitPipeline drops a document and acknowledges it
func (t *thread) exitPipeline(pid id.PipelineID, reason string) {
	if !t.drop(pid) {
		return
	}
	t.send(constellation.PipelineExited{Pipeline: pid, Reason: reason})
}

// crash drops a document and reports it as crashed
func (t *thread) crash(pid id.PipelineID, reason string) {
	if !t.drop(pid) {
		return
	}
	t.send(constellation.FrameCrashed{Pipeline: pid, Reason: reason})
}

func (t *thread) drop(pid id.PipelineID) bool {
	h, ok := t.docs[pid]
	if !ok {
		return false
	}
	delete(t.docs, pid)
	if h.hang != nil {
		h.hang.Unregister()
	}
	return true
}

// shutdown reports every document still hosted when the loop stops
func (t *thread) shutdown() {
	for pid := range t.docs {
		t.exitPipeline(pid, "event loop exited")
	}
}

func (t *thread) idle() {
	for _, h := range t.docs {
		if h.hang != nil {
			h.hang.NotifyWait()
		}
	}
}

func (t *thread) busy() {
	for _, h := range t.docs {
		if h.hang != nil {
			h.hang.NotifyActivity()
		}
	}
}

// send reports to the constellation. A dead constellation is logged once by the proxy.
func (t *thread) send(msg constellation.Message) {
	_ = t.out.Send(msg)
}
