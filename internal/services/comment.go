package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fundraiseer/apiserver/internal/store"
	"github.com/fundraiseer/apiserver/types"
)

const maxCommentLength = 2000

// CommentService manages comments and the campaign's embedded comment list.
type CommentService struct {
	comments  CommentRepository
	campaigns CampaignRepository
	users     UserRepository
	tx        Transactor
}

func NewCommentService(comments CommentRepository, campaigns CampaignRepository, users UserRepository, tx Transactor) *CommentService {
	return &CommentService{comments: comments, campaigns: campaigns, users: users, tx: tx}
}

// Add attaches a comment to a visible campaign.
func (s *CommentService) Add(ctx context.Context, campaignID, userID, text string) (types.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.CommentView{}, ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return types.CommentView{}, ErrCommentTooLong
	}

	var created types.Comment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		campaign, err := s.campaigns.Get(ctx, campaignID)
		if err != nil {
			return campaignLookupError(err)
		}
		if !campaign.IsPublic() && campaign.CreatorID != userID {
			return ErrCommentsClosed
		}

		created, err = s.comments.Create(ctx, types.Comment{
			CampaignID: campaign.ID,
			UserID:     userID,
			Text:       text,
		})
		if err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		if err := s.campaigns.AddComment(ctx, campaign.ID, created.ID); err != nil {
			return fmt.Errorf("link comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.CommentView{}, err
	}
	return s.view(ctx, created, map[string]*types.UserSummary{}), nil
}

// Delete removes a comment owned by userID and unlinks it from its campaign.
func (s *CommentService) Delete(ctx context.Context, commentID, userID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		comment, err := s.comments.Get(ctx, commentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		if comment.UserID != userID {
			return ErrNotCommentOwner
		}
		if err := s.comments.Delete(ctx, comment.ID); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if err := s.campaigns.RemoveComment(ctx, comment.CampaignID, comment.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("unlink comment: %w", err)
		}
		return nil
	})
}

// List returns the comments of a campaign, newest first. Comments on a campaign
// that is not public are only shown to its creator.
func (s *CommentService) List(ctx context.Context, campaignID, viewerID string) ([]types.CommentView, error) {
	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, campaignLookupError(err)
	}
	if !campaign.IsPublic() && (viewerID == "" || viewerID != campaign.CreatorID) {
		return nil, ErrCampaignHidden
	}
	comments, err := s.comments.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	cache := map[string]*types.UserSummary{}
	views := make([]types.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, s.view(ctx, c, cache))
	}
	return views, nil
}

func (s *CommentService) view(ctx context.Context, c types.Comment, cache map[string]*types.UserSummary) types.CommentView {
	view := types.CommentView{Comment: c}
	if summary, ok := cache[c.UserID]; ok {
		view.Author = summary
		return view
	}
	if user, err := s.users.GetByID(ctx, c.UserID); err == nil {
		summary := user.Summary()
		summary.Email = ""
		view.Author = &summary
	}
	cache[c.UserID] = view.Author
	return view
}
