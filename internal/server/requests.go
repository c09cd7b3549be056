package server

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/dastanaron/bookmarktree/internal/models"
)

const (
	maxTitleLength = 1024
	maxURLLength   = 8192
)

type createFolderRequest struct {
	ParentID models.ID `json:"parent_id"`
	Name     string    `json:"name"`
}

func (req createFolderRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ParentID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, maxTitleLength)),
	)
}

type createBookmarkRequest struct {
	ParentID models.ID `json:"parent_id"`
	URL      string    `json:"url"`
}

func (req createBookmarkRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ParentID, validation.Required),
		validation.Field(&req.URL, validation.Required, validation.Length(1, maxURLLength), is.URL),
	)
}

type updateRequest models.Edit

func (req updateRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Length(0, maxTitleLength)),
		validation.Field(&req.URL, validation.NilOrNotEmpty, validation.Length(1, maxURLLength)),
		validation.Field(&req.Tags, validation.By(validTags)),
	)
}

func validTags(value any) error {
	tags, _ := value.(*[]models.Tag)
	if tags == nil {
		return nil
	}
	for _, t := range *tags {
		if err := validation.Validate(t.Name, validation.Required, validation.Length(1, maxTitleLength)); err != nil {
			return err
		}
	}
	return nil
}

type moveRequest struct {
	DestinationID models.ID `json:"destination_id"`
}

func (req moveRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.DestinationID, validation.Required),
	)
}

type starRequest struct {
	Star bool `json:"star"`
}
