package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleClient        Role = "client"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// IsTerminal reports whether the status permits no further transition.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestDenied
}

// Principal is the authenticated actor performing an operation. It is built by
// the auth middleware from the verified token and passed explicitly into every
// service call.
type Principal struct {
	ID       bson.ObjectID
	Username string
	Role     Role
	Active   bool
}

func (p Principal) IsAdministrator() bool {
	return p.Role == RoleAdministrator
}

// User is the local read model of an identity-service account, maintained by
// consuming user-events. Only active clients may be granted access.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string        `bson:"username" json:"username"`
	Email     string        `bson:"email" json:"email"`
	Role      Role          `bson:"role" json:"role"`
	Active    bool          `bson:"active" json:"active"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Project is a registry entry. OwnerID is set once at creation and never
// changes; GrantedUsers holds standing access and never contains the owner.
type Project struct {
	ID           bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string          `bson:"name" json:"name" validate:"required"`
	Description  string          `bson:"description,omitempty" json:"description"`
	Location     string          `bson:"location" json:"location"`
	PhoneNumber  string          `bson:"phoneNumber" json:"phoneNumber"`
	Email        string          `bson:"email" json:"email"`
	StartDate    time.Time       `bson:"startDate" json:"startDate"`
	EndDate      time.Time       `bson:"endDate" json:"endDate"`
	OwnerID      bson.ObjectID   `bson:"ownerId" json:"ownerId"`
	GrantedUsers []bson.ObjectID `bson:"grantedUsers" json:"grantedUsers"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// HasGrant reports whether userID holds a standing grant. Ownership is not a
// grant; callers that need full view access use the access policy instead.
func (p *Project) HasGrant(userID bson.ObjectID) bool {
	for _, id := range p.GrantedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// AccessRequest is a reviewable ask for a grant. It is mutated exactly once,
// on review, when it leaves RequestPending.
type AccessRequest struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      bson.ObjectID `bson:"userId" json:"userId"`
	ProjectID   bson.ObjectID `bson:"projectId" json:"projectId"`
	Status      RequestStatus `bson:"status" json:"status"`
	RequestedAt time.Time     `bson:"requestedAt" json:"requestedAt"`
	ReviewerID  bson.ObjectID `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	ReviewedAt  time.Time     `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	Notes       string        `bson:"notes,omitempty" json:"notes,omitempty"`
}
