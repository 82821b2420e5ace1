package stream

// Pipeline runs Decoder, Interpret and Accumulator over a single response.
type Pipeline struct {
	decoder *Decoder
	acc     *Accumulator
	onDelta func(text string)

	frames  int
	skipped int
	ended   bool
	title   *string
}

// NewPipeline creates a pipeline. onDelta, if non-nil, is called with the
// accumulated text after every content delta, in arrival order.
func NewPipeline(onDelta func(text string)) *Pipeline {
	return &Pipeline{
		decoder: NewDecoder(),
		acc:     NewAccumulator(),
		onDelta: onDelta,
	}
}

// Write feeds a chunk of the response body. It always consumes the whole
// chunk so Pipeline can be used as an io.Writer.
func (p *Pipeline) Write(chunk []byte) (int, error) {
	for _, frame := range p.decoder.Feed(chunk) {
		p.handle(frame)
	}
	return len(chunk), nil
}

// Close drains the decoder and returns the final text and the last title
// announced by an end event.
func (p *Pipeline) Close() (string, *string) {
	for _, frame := range p.decoder.Flush() {
		p.handle(frame)
	}
	return p.acc.Finalize(), p.title
}

func (p *Pipeline) handle(frame string) {
	p.frames++
	switch ev := Interpret(frame).(type) {
	case ContentDelta:
		text := p.acc.OnDelta(ev.Content)
		if p.onDelta != nil {
			p.onDelta(text)
		}
	case StreamEnd:
		p.ended = true
		if ev.Title != nil {
			p.title = ev.Title
		}
	case Unrecognized:
		p.skipped++
	}
}

// Text returns the text accumulated so far.
func (p *Pipeline) Text() string {
	return p.acc.Text()
}

// Ended reports whether an end event has been seen.
func (p *Pipeline) Ended() bool {
	return p.ended
}

// Mode returns the framing mode detected for this response.
func (p *Pipeline) Mode() Mode {
	return p.decoder.Mode()
}

// Stats returns the number of frames seen and how many were skipped.
func (p *Pipeline) Stats() (frames, skipped int) {
	return p.frames, p.skipped
}
