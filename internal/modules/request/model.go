// README: Blood request aggregate, hospital reference variant and status flow.
package request

import (
	"encoding/json"
	"time"

	"bloodlink/internal/types"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusFulfilled || s == StatusCancelled
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyNormal   Urgency = "normal"
)

func (u Urgency) Valid() bool {
	return u == UrgencyCritical || u == UrgencyUrgent || u == UrgencyNormal
}

const (
	DefaultHospitalName = "Unknown Facility"
	DefaultPatientName  = "Anonymous"
	DefaultContact      = "N/A"
)

// Event types published on the request stream.
const (
	EventCreated   = "request.created"
	EventUpdated   = "request.updated"
	EventFulfilled = "request.fulfilled"
)

// HospitalRef names the facility a request is for, either by registered id
// or by free text. Exactly one side is set; the zero value is neither.
type HospitalRef struct {
	id   types.ID
	name string
}

func HospitalByID(id types.ID) HospitalRef { return HospitalRef{id: id} }

func HospitalByName(name string) HospitalRef { return HospitalRef{name: name} }

func (r HospitalRef) ID() (types.ID, bool) { return r.id, r.id != "" }

func (r HospitalRef) Name() (string, bool) { return r.name, r.id == "" && r.name != "" }

func (r HospitalRef) IsZero() bool { return r.id == "" && r.name == "" }

type hospitalRefJSON struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (r HospitalRef) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(hospitalRefJSON{ID: string(r.id), Name: r.name})
}

func (r *HospitalRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = HospitalRef{}
		return nil
	}
	var raw hospitalRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.NewValidationError("hospital", "must be an object with id or name")
	}
	switch {
	case raw.ID != "" && raw.Name != "":
		return types.NewValidationError("hospital", "set either id or name, not both")
	case raw.ID != "":
		id, ok := types.ParseID(raw.ID)
		if !ok {
			return types.NewValidationError("hospital.id", "invalid id")
		}
		*r = HospitalByID(id)
	default:
		*r = HospitalByName(raw.Name)
	}
	return nil
}

// Requester is the summary of the user who opened the request.
type Requester struct {
	ID         types.ID `json:"id"`
	Name       string   `json:"name,omitempty"`
	Email      string   `json:"email,omitempty"`
	BloodGroup string   `json:"bloodGroup,omitempty"`
}

type BloodRequest struct {
	ID            types.ID        `json:"id"`
	Requester     Requester       `json:"requester"`
	BloodType     types.BloodType `json:"bloodType"`
	Units         int             `json:"units"`
	Location      types.Point     `json:"location"`
	Hospital      HospitalRef     `json:"hospital"`
	HospitalName  string          `json:"hospitalName"`
	Urgency       Urgency         `json:"urgency"`
	PatientName   string          `json:"patientName"`
	Contact       string          `json:"contact"`
	Notes         string          `json:"notes"`
	Status        Status          `json:"status"`
	StatusVersion int             `json:"statusVersion"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// AllowedTransitions is the request status flow. fulfilled and cancelled are
// terminal.
var AllowedTransitions = map[Status][]Status{
	StatusOpen: {StatusFulfilled, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
