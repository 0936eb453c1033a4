// Package wren implements the receiving side of an RFC 5321 SMTP server.
//
// # Server
//
// Create an SMTP server using the fluent builder API:
//
//	server, err := wren.New("mx.example.com").
//	    Port(2525).
//	    MaxMessageSize(25 * 1024 * 1024).
//	    Extension("8BITMIME").
//	    Handler(func() wren.EventHandler { return &myHandler{} }).
//	    Build()
//
//	if err := server.ListenAndServe(); err != wren.ErrServerClosed {
//	    log.Fatal(err)
//	}
//
// Shutdown sends "421 <hostname> Service shutting down" to every connected
// client and waits for the sessions to end.
//
// # Events
//
// The server does not store mail. Each connection gets its own EventHandler,
// created by the configured HandlerFactory, which is told about the client
// domain, the sender, every recipient and the message body as it streams in.
// Returning an error from a hook rejects that step. Embed NopEventHandler to
// implement only the hooks you need.
//
// # Commands
//
// Commands are matched against an ordered CommandTable by case-insensitive
// prefix, and each is legal only in a set of transaction states. Custom
// commands added with ServerBuilder.Command are tried before the built-in
// ones:
//
//	server, err := wren.New("mx.example.com").
//	    Command(wren.CommandSpec{
//	        Prefix: "XSTATS",
//	        States: wren.AnyState,
//	        Handler: func(s *wren.Session, arg string) error {
//	            return s.Reply(wren.CodeOK, s.State().String())
//	        },
//	    }).
//	    Build()
//
// # Middleware
//
// Middleware wraps every command handler. Recovery is always installed, and
// Logger is added when Debug is set:
//
//	server, err := wren.New("mx.example.com").
//	    Use(myMiddleware).
//	    Build()
package wren
