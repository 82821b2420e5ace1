/*
Package stream recovers assistant messages from a streamed HTTP response body.

The response framing is never declared by the backend. Decoder inspects the first
non-blank content once and then commits to one of two conventions:

  - event blocks, as in Server-Sent Events: "data: <json>\n\n"
  - line-delimited JSON: one document per line

Each frame is classified by Interpret into a ContentDelta, a StreamEnd or an
Unrecognized event, and content deltas are folded into the reply text by an
Accumulator. Pipeline wires the three together for a single response; every
concurrent response needs its own Pipeline.

	p := stream.NewPipeline(func(text string) { render(text) })
	for chunk := range chunks {
		p.Write(chunk)
	}
	text, title := p.Close()
*/
package stream
