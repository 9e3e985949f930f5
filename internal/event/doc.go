// Package event distributes session progress to live observers.
//
// The engine publishes [Event] values to a [Bus] keyed by session id. Each
// session has its own ordered stream: events carry a per-session sequence
// number and handlers see them in publish order. There is no ordering across
// sessions.
//
// The bus keeps the most recent events of every session in a ring buffer so
// a client that reconnects after a dropped connection can replay what it
// missed, using [Bus.SubscribeWithReplay] or [Bus.RecentEvents]. Publishing
// is fire-and-forget: a session without subscribers still records its
// events, and nothing is persisted.
//
// The event kinds are a closed set, see [Kinds].
//
// Basic usage:
//
//	bus := event.NewBus(50, logger)
//	unsubscribe := bus.Subscribe(sessionID, func(e event.Event) {
//	    fmt.Println(e.Seq, e.Kind)
//	})
//	defer unsubscribe()
//
//	bus.Publish(sessionID, event.New(event.KindDebateStarted, sessionID))
package event
