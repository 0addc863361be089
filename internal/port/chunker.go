package port

// TextChunker splits one page of text into ordered windows.
type TextChunker interface {
	Split(text string) ([]string, error)
}
