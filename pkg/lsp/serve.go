package lsp

import (
	"context"
	"io"
	"os"

	"go.lsp.dev/jsonrpc2"
)

// stdioConn joins stdin and stdout into the ReadWriteCloser the
// JSON-RPC stream wants.
type stdioConn struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s stdioConn) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdioConn) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s stdioConn) Close() error {
	s.in.Close()
	return s.out.Close()
}

// RunStdio serves LSP over stdin/stdout until the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	stream := jsonrpc2.NewStream(stdioConn{in: os.Stdin, out: os.Stdout})
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn

	conn.Go(ctx, s.Handle)
	s.logger.Info("language server listening on stdio")

	select {
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	case <-conn.Done():
		s.teardown()
		return conn.Err()
	}
}
