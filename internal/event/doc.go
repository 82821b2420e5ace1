/*
Package event provides the pub/sub bus that connects the chat engine to its
front ends.

The session store and folder registry publish lifecycle events and the chat
orchestrator publishes streaming progress. In-process consumers such as the
CLI renderer use Subscribe or SubscribeAll and receive typed data. Remote
consumers such as the HTTP event stream use Stream, which delivers every
event as a JSON watermill message in publish order.

# Event Types

Session events:
  - session.created, session.updated, session.deleted, session.switched

Folder events:
  - folder.created, folder.updated, folder.deleted

Chat events:
  - message.committed: a message was durably appended to a session
  - message.delta: the in-flight assistant reply changed
  - chat.state: the orchestrator state of a session changed

# Usage

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.MessageDelta, func(e event.Event) {
		data := e.Data.(event.MessageDeltaData)
		render(data.Text)
	})
	defer unsubscribe()

Delta events must be published with PublishSync so subscribers observe them
in arrival order.
*/
package event
