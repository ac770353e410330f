package twilio

import (
	"github.com/memohai/stylebot/internal/media"
)

const (
	ReplyNoMedia         = "Please send an image to stylize."
	ReplyHostUnsupported = "Sorry, images from that host are not supported."
	ReplyProcessing      = "Got it! Stylizing your image now, this can take a moment..."
	ReplySuccess         = "Here is your stylized image!"
	ReplyTooLarge        = "Your image is too large. Please send an image under 5 MB."
	ReplyUnsupportedType = "That file type is not supported. Please send a JPEG, PNG or WebP image."
	ReplyInvalidImage    = "We couldn't process that image. Please try a different one."
	ReplyTransferFailed  = "There was a problem downloading or saving your image. Please try again."
	ReplyUnexpected      = "Something went wrong while stylizing your image. Please try again later."
)

// replyForError picks the user-facing text for a failed pipeline run.
func replyForError(err error) string {
	kind, reason, ok := media.KindOf(err)
	if !ok {
		return ReplyUnexpected
	}
	switch kind {
	case media.KindValidation:
		switch reason {
		case media.ReasonTooLarge:
			return ReplyTooLarge
		case media.ReasonUnsupportedType:
			return ReplyUnsupportedType
		default:
			return ReplyInvalidImage
		}
	case media.KindDownload, media.KindUpload:
		return ReplyTransferFailed
	default:
		return ReplyUnexpected
	}
}
