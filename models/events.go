package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// RegistryEventTypeENUMType registry event type ENUM value type
type RegistryEventTypeENUMType string

const (
	// RegistryEventTypeModelRegistered a new model was registered
	RegistryEventTypeModelRegistered RegistryEventTypeENUMType = "MODEL_REGISTERED"

	// RegistryEventTypeModelUpdated model metadata was updated
	RegistryEventTypeModelUpdated RegistryEventTypeENUMType = "MODEL_UPDATED"

	// RegistryEventTypeModelDeactivated a model was deactivated
	RegistryEventTypeModelDeactivated RegistryEventTypeENUMType = "MODEL_DEACTIVATED"

	// RegistryEventTypeModelRated a model received a rating
	RegistryEventTypeModelRated RegistryEventTypeENUMType = "MODEL_RATED"
)

// RegistryEvent one entry of the append-only registry event log
type RegistryEvent struct {
	// ID event entry ID
	ID string `json:"id" gorm:"column:id;primaryKey;unique" validate:"required"`
	// EventType registry event type
	EventType RegistryEventTypeENUMType `json:"type" gorm:"column:type;not null" validate:"required,registry_event_type"`
	// Metadata the event payload
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata;default:null"`
	// CreatedAt entry creation timestamp
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt entry update timestamp
	UpdatedAt time.Time `json:"updated_at"`
}

// RegistryEventModelRegistered payload of a MODEL_REGISTERED event
type RegistryEventModelRegistered struct {
	// ModelID the new model
	ModelID ModelID `json:"model_id"`
	// Owner account which registered the model
	Owner string `json:"owner" validate:"required"`
	// ContentRef content reference of the new model
	ContentRef string `json:"content_ref" validate:"required"`
}

// RegistryEventModelChanged payload of a MODEL_UPDATED or MODEL_DEACTIVATED event
type RegistryEventModelChanged struct {
	// ModelID the affected model
	ModelID ModelID `json:"model_id"`
	// Owner account which owns the model
	Owner string `json:"owner" validate:"required"`
}

// RegistryEventModelRated payload of a MODEL_RATED event
type RegistryEventModelRated struct {
	// ModelID the rated model
	ModelID ModelID `json:"model_id"`
	// Rater account which submitted the rating
	Rater string `json:"rater" validate:"required"`
	// Rating the submitted rating value
	Rating uint8 `json:"rating" validate:"required,min=1,max=5"`
}

// ParseMetadata parse the event payload based on the event type
func (e RegistryEvent) ParseMetadata(validator *validator.Validate) (interface{}, error) {
	switch e.EventType {
	case RegistryEventTypeModelRegistered:
		var parsed RegistryEventModelRegistered
		if err := json.Unmarshal(e.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("registry event '%s' metadata parse failed [%w]", e.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	case RegistryEventTypeModelUpdated:
		fallthrough
	case RegistryEventTypeModelDeactivated:
		var parsed RegistryEventModelChanged
		if err := json.Unmarshal(e.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("registry event '%s' metadata parse failed [%w]", e.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	case RegistryEventTypeModelRated:
		var parsed RegistryEventModelRated
		if err := json.Unmarshal(e.Metadata, &parsed); err != nil {
			return nil, fmt.Errorf("registry event '%s' metadata parse failed [%w]", e.EventType, err)
		}
		return parsed, validator.Struct(&parsed)

	default:
		return nil, fmt.Errorf("registry event type '%s' is unknown", e.EventType)
	}
}
