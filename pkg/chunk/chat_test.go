package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

func chatDoc(turns []extract.ChatTurn) *extract.ExtractedDocument {
	return &extract.ExtractedDocument{
		DocumentType: extract.TypeLLMChat,
		Turns:        turns,
	}
}

func TestSplitTurnsGroupsPairs(t *testing.T) {
	turns := []extract.ChatTurn{
		{Speaker: "user", Text: "How do I resize a qcow2 disk image safely?"},
		{Speaker: "assistant", Text: "Use qemu-img resize on the image, then grow the filesystem."},
		{Speaker: "user", Text: "How do I grow the filesystem inside the resized image?"},
		{Speaker: "assistant", Text: "Run growpart on the partition, then resize2fs on the filesystem."},
	}
	chunks := newChunker().Split("chat-1", chatDoc(turns))

	require.Len(t, chunks, 1)
	assert.Equal(t, TypeChatTurn, chunks[0].Type)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "### "))
	assert.Contains(t, chunks[0].Text, "**user**: How do I resize")
	assert.Contains(t, chunks[0].Text, "**assistant**: Run growpart")
}

func TestSplitTurnsBreaksOnExplicitTopicShift(t *testing.T) {
	turns := []extract.ChatTurn{
		{Speaker: "user", Text: "How do I resize a qcow2 disk image safely?"},
		{Speaker: "assistant", Text: "Use qemu-img resize, then grow the filesystem."},
		{Speaker: "user", Text: "Unrelated question: how should I season a cast iron pan?"},
		{Speaker: "assistant", Text: "Coat it with a thin layer of oil and bake it."},
	}
	chunks := newChunker().Split("chat-1", chatDoc(turns))

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "qcow2")
	assert.NotContains(t, chunks[0].Text, "cast iron")
	assert.Contains(t, chunks[1].Text, "cast iron")
}

func TestSplitTurnsBreaksOnLowTermOverlap(t *testing.T) {
	turns := []extract.ChatTurn{
		{Speaker: "user", Text: "How does the kernel schedule processes across cores under load?"},
		{Speaker: "assistant", Text: "The scheduler balances runqueues across cores."},
		{Speaker: "user", Text: "How tall are giraffes compared with elephants roaming the savanna?"},
		{Speaker: "assistant", Text: "Adult giraffes reach about five meters."},
	}
	chunks := newChunker().Split("chat-1", chatDoc(turns))

	assert.Len(t, chunks, 2)
}

func TestSplitTurnsMaxPairsPerChunk(t *testing.T) {
	// Five pairs on the same topic: cap at three pairs per chunk.
	var turns []extract.ChatTurn
	for i := 0; i < 5; i++ {
		turns = append(turns,
			extract.ChatTurn{Speaker: "user", Text: "How about the backup server disk rotation schedule this week?"},
			extract.ChatTurn{Speaker: "assistant", Text: "The backup server disk rotation schedule stays unchanged."},
		)
	}
	chunks := newChunker().Split("chat-1", chatDoc(turns))

	require.Len(t, chunks, 2)
	assert.Equal(t, 3, strings.Count(chunks[0].Text, "**user**:"))
	assert.Equal(t, 2, strings.Count(chunks[1].Text, "**user**:"))
}

func TestSplitTurnsLeadingAssistantTurn(t *testing.T) {
	turns := []extract.ChatTurn{
		{Speaker: "assistant", Text: "Welcome back. Your previous session covered disk resizing."},
		{Speaker: "user", Text: "Continue where we left off with the disk resizing steps."},
		{Speaker: "assistant", Text: "Next step is growing the partition."},
	}
	chunks := newChunker().Split("chat-1", chatDoc(turns))

	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0].Text, "Welcome back")
}

func TestSynthesizeTopic(t *testing.T) {
	assert.Equal(t, "How do I resize a qcow2 disk image…",
		synthesizeTopic("How do I resize a qcow2 disk image without losing data?"))
	assert.Equal(t, "Short question", synthesizeTopic("Short question?"))
	assert.Equal(t, "Conversation", synthesizeTopic("   "))
}

func TestTermOverlap(t *testing.T) {
	assert.Equal(t, 1.0, termOverlap("the disk rotation schedule", "disk rotation schedule again"))
	assert.Equal(t, 0.0, termOverlap("kernel scheduler runqueues", "giraffes savanna elephants"))
	// Empty sides never force a split.
	assert.Equal(t, 1.0, termOverlap("", "anything at all here"))
}
