// Package server is the relay's HTTP surface.
//
// It mounts the engine, the provider catalog and the chat history behind one
// ServeMux:
//
//	GET    /health                         liveness
//	GET    /ready                          readiness of engine, history and NATS
//	GET    /version                        build information
//	GET    /v1/status                      engine status
//	POST   /v1/proxy/{start|stop|restart}  engine lifecycle
//	GET    /v1/providers                   providers and whether a key is set
//	GET    /v1/providers/{provider}/models model catalog, ?remote=1 for live
//	POST   /v1/chat                        one-shot message through the engine
//	GET    /v1/chats                       chats, newest first
//	POST   /v1/chats                       new chat
//	DELETE /v1/chats                       delete every chat
//	GET    /v1/chats/{id}                  chat with messages
//	PATCH  /v1/chats/{id}                  rename or switch provider/model
//	DELETE /v1/chats/{id}                  delete chat
//	POST   /v1/chats/{id}/messages         send a message in a chat
//	DELETE /v1/chats/{id}/messages         clear a chat
//	GET    /metrics                        Prometheus metrics
//
// Every request passes through recovery, tracing, request id, access
// logging and CORS middleware, in that order.
//
//	srv := server.New(&cfg.Server, server.Deps{
//	    Engine:  engine,
//	    Clients: factory,
//	    Chats:   chatService,
//	    Health:  checker,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled; signal handling belongs to the caller.
package server
