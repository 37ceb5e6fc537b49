package anthropic

import (
	"github.com/Laisky/errors/v2"

	"github.com/makehub/llm-gateway/common/image"
)

// InlineRemoteImages replaces url image sources with fetched base64 data.
// Bedrock and Vertex invocations only accept inline image bytes; the native
// API takes urls directly, so only those two adapters call this.
func InlineRemoteImages(request *Request) error {
	for mi := range request.Messages {
		blocks := request.Messages[mi].Content
		for bi := range blocks {
			block := &blocks[bi]
			if block.Type != "image" || block.Source == nil || block.Source.Type != "url" {
				continue
			}
			mimeType, data, err := image.GetImageFromUrl(block.Source.URL)
			if err != nil {
				return errors.Wrapf(err, "fetch image %s", block.Source.URL)
			}
			block.Source = &ImageSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      data,
			}
		}
	}
	return nil
}
