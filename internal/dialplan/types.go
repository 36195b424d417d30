package dialplan

import (
	"fmt"

	"github.com/routepbx/routepbx/internal/database/models"
)

// InboundDestination is the closed set of inbound route targets. The
// resolution engine dispatches over these variants exhaustively.
type InboundDestination interface {
	isInboundDestination()
}

// ToExtension bridges the call to a local extension.
type ToExtension struct {
	Extension string
}

// ToSIPURI bridges the call to a raw SIP URI or dial string.
type ToSIPURI struct {
	URI string
}

// ToIVR transfers the call into an IVR menu.
type ToIVR struct {
	MenuID int64
}

// ToVoicemail drops the call into a mailbox.
type ToVoicemail struct {
	Mailbox string
}

func (ToExtension) isInboundDestination() {}
func (ToSIPURI) isInboundDestination()    {}
func (ToIVR) isInboundDestination()       {}
func (ToVoicemail) isInboundDestination() {}

// ParseInboundDestination converts a persisted (type, value) pair into its
// variant. The value of an IVR destination is the menu id.
func ParseInboundDestination(destType, value string) (InboundDestination, error) {
	switch destType {
	case models.DestExtension:
		return ToExtension{Extension: value}, nil
	case models.DestSIPURI:
		return ToSIPURI{URI: value}, nil
	case models.DestIVR:
		var menuID int64
		if _, err := fmt.Sscanf(value, "%d", &menuID); err != nil || menuID <= 0 {
			return nil, fmt.Errorf("invalid ivr menu id %q", value)
		}
		return ToIVR{MenuID: menuID}, nil
	case models.DestVoicemail:
		return ToVoicemail{Mailbox: value}, nil
	default:
		return nil, fmt.Errorf("unknown destination type %q", destType)
	}
}

// IVROptionAction is the closed set of IVR digit option targets.
type IVROptionAction interface {
	isIVROptionAction()
}

// IVRToExtension transfers to a local extension.
type IVRToExtension struct {
	Extension string
}

// IVRToSIPURI bridges to a SIP URI.
type IVRToSIPURI struct {
	URI string
}

// IVRToVoicemail drops into a mailbox.
type IVRToVoicemail struct {
	Mailbox string
}

// IVRHangup ends the call.
type IVRHangup struct{}

func (IVRToExtension) isIVROptionAction() {}
func (IVRToSIPURI) isIVROptionAction()    {}
func (IVRToVoicemail) isIVROptionAction() {}
func (IVRHangup) isIVROptionAction()      {}

// ParseIVROptionAction converts a persisted option (type, value) pair into
// its variant.
func ParseIVROptionAction(actionType, value string) (IVROptionAction, error) {
	switch actionType {
	case models.IVRActionExtension:
		return IVRToExtension{Extension: value}, nil
	case models.IVRActionSIPURI:
		return IVRToSIPURI{URI: value}, nil
	case models.IVRActionVoicemail:
		return IVRToVoicemail{Mailbox: value}, nil
	case models.IVRActionHangup:
		return IVRHangup{}, nil
	default:
		return nil, fmt.Errorf("unknown ivr option action %q", actionType)
	}
}
