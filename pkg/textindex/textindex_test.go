package textindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbolscope/symbolscope/pkg/extractor"
	"github.com/symbolscope/symbolscope/pkg/util"
)

func names(record *extractor.FileRecord) []string {
	out := make([]string, 0, len(record.Symbols))
	for i := range record.Symbols {
		out = append(out, record.Symbols[i].Name)
	}
	return out
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("/ws/main.go"))
	assert.True(t, Supported("/ws/Main.java"))
	assert.True(t, Supported("/ws/app.py"))
	assert.False(t, Supported("/ws/app.ts"))
	assert.False(t, Supported("/ws/readme.md"))
}

func TestGoPatterns(t *testing.T) {
	ix := NewIndexer(util.NewLogger(util.DefaultLoggerConfig()))

	source := `package main

func ProcessOrder(id int) error {
	return nil
}

func (s *Server) handleRequest() {}

type OrderService struct{}
`
	record := ix.ExtractFile("/ws/main.go", []byte(source))
	got := names(record)
	assert.Contains(t, got, "ProcessOrder")
	assert.Contains(t, got, "handleRequest")
	assert.Contains(t, got, "OrderService")

	for i := range record.Symbols {
		assert.Equal(t, extractor.KindText, record.Symbols[i].Kind)
		assert.False(t, record.Symbols[i].IsDefinition)
	}
}

func TestPythonPatterns(t *testing.T) {
	ix := NewIndexer(util.NewLogger(util.DefaultLoggerConfig()))

	source := `class OrderService:
    def process_order(self, order_id):
        pass

def standalone():
    pass
`
	record := ix.ExtractFile("/ws/orders.py", []byte(source))
	got := names(record)
	assert.Contains(t, got, "OrderService")
	assert.Contains(t, got, "process_order")
	assert.Contains(t, got, "standalone")
}

func TestJavaPatterns(t *testing.T) {
	ix := NewIndexer(util.NewLogger(util.DefaultLoggerConfig()))

	source := `public class OrderController {
    public void submitOrder(Order order) {}
}
`
	record := ix.ExtractFile("/ws/OrderController.java", []byte(source))
	got := names(record)
	assert.Contains(t, got, "OrderController")
	assert.Contains(t, got, "submitOrder")
}

func TestRustPatterns(t *testing.T) {
	ix := NewIndexer(util.NewLogger(util.DefaultLoggerConfig()))

	source := "fn process() {}\nstruct Order {}\ntrait Handler {}\n"
	record := ix.ExtractFile("/ws/lib.rs", []byte(source))
	got := names(record)
	assert.Contains(t, got, "process")
	assert.Contains(t, got, "Order")
	assert.Contains(t, got, "Handler")
}

func TestUnsupportedExtensionEmptyRecord(t *testing.T) {
	ix := NewIndexer(util.NewLogger(util.DefaultLoggerConfig()))
	record := ix.ExtractFile("/ws/readme.md", []byte("# hi"))
	require.NotNil(t, record)
	assert.Empty(t, record.Symbols)
	assert.NotEmpty(t, record.ContentHash)
}
