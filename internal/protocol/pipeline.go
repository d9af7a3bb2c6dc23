package protocol

import "bytes"

// Pipeline wires a LineSplitter, Decode and a Router into an io.Writer that
// can be handed to exec.Cmd as Stdout.
type Pipeline struct {
	splitter LineSplitter
	router   *Router
	lines    int
}

// NewPipeline creates a Pipeline feeding router.
func NewPipeline(router *Router) *Pipeline {
	return &Pipeline{router: router}
}

// Write consumes a chunk of child stdout. It never fails.
func (p *Pipeline) Write(chunk []byte) (int, error) {
	for _, line := range p.splitter.Feed(chunk) {
		p.lines++
		if len(bytes.TrimSpace([]byte(line))) == 0 {
			continue
		}
		ev, err := Decode([]byte(line))
		if err != nil {
			p.router.Malformed(line, err)
			continue
		}
		p.router.Route(ev)
	}
	return len(chunk), nil
}

// Lines returns how many complete lines have been processed.
func (p *Pipeline) Lines() int {
	return p.lines
}

// Router returns the router this pipeline feeds.
func (p *Pipeline) Router() *Router {
	return p.router
}
