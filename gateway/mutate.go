package gateway

import (
	"context"
	"strings"

	"mailgate/models"
	"mailgate/utils"
)

// MoveEmail copies the message to destination, then flags and expunges
// the original.
func (g *Gateway) MoveEmail(ctx context.Context, folder, emailID, destination string) (*models.MoveResult, error) {
	uid, err := parseID(emailID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(destination) == "" {
		return nil, utils.ValidationError("destination folder is required")
	}

	s, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release(s)

	if err := selectFolder(s, folder, false); err != nil {
		return nil, err
	}
	if err := s.Copy(uid, destination); err != nil {
		return nil, utils.ProtocolError("failed to copy email to: "+destination, err)
	}
	if err := purge(s, uid); err != nil {
		return nil, err
	}

	utils.Log.WithFields(map[string]interface{}{
		"email_id": emailID,
		"from":     folder,
		"to":       destination,
	}).Info("email moved")

	return &models.MoveResult{
		Status:     "moved",
		EmailID:    emailID,
		FromFolder: folder,
		ToFolder:   destination,
	}, nil
}

// DeleteEmail moves the message to the trash folder. If the copy is
// refused the message is deleted permanently instead.
func (g *Gateway) DeleteEmail(ctx context.Context, folder, emailID string) (*models.DeleteResult, error) {
	uid, err := parseID(emailID)
	if err != nil {
		return nil, err
	}

	s, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release(s)

	if err := selectFolder(s, folder, false); err != nil {
		return nil, err
	}

	status := models.DeleteMovedToTrash
	if err := s.Copy(uid, g.opts.TrashFolder); err != nil {
		utils.Log.WithFields(map[string]interface{}{
			"email_id": emailID,
			"trash":    g.opts.TrashFolder,
		}).Warn("copy to trash failed, deleting permanently: %v", err)
		status = models.DeletePermanent
	}

	if err := purge(s, uid); err != nil {
		if status == models.DeletePermanent {
			return nil, utils.ProtocolError("failed to delete email", err)
		}
		return nil, err
	}

	return &models.DeleteResult{Status: status, EmailID: emailID, Folder: folder}, nil
}

// purge flags uid \Deleted and expunges the selected folder
func purge(s Session, uid uint32) error {
	if err := s.MarkDeleted(uid); err != nil {
		return utils.ProtocolError("failed to mark original as deleted", err)
	}
	if err := s.Expunge(); err != nil {
		return utils.ProtocolError("failed to expunge folder", err)
	}
	return nil
}
