// Package chat is the conversation layer on top of the request engine.
//
// A chat is bound to one provider and model at a time. Send routes the
// user's text through the engine and, once the provider answers, appends
// both turns to the history store:
//
//	svc := chat.NewService(store, engine)
//	c, _ := svc.NewChat(ctx, providers.Anthropic, "")
//	answer, err := svc.Send(ctx, c.ID, "Hello")
//	if err != nil {
//	    fmt.Println(chat.Guidance(c.Provider, err))
//	}
package chat
