package grpcserver

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"userManagement/internal/filter"
	"userManagement/internal/users"
	"userManagement/models"
)

// Payload shapes:
//
//	user:          {"id", "first_name", "last_name", "email", "phone", "dob", "address"}
//	ListUsers:     {}                                   -> {"users": [user...]}
//	FilterUsers:   {"first_name", "last_name", "email", "phone"}
//	                                                    -> {"users": [...], "active_criteria": n}
//	SearchUsers:   {"query"}                            -> {"users": [...]}
//	GetUser:       {"id"}                               -> {"user": user}
//	CreateUser:    user without id                      -> {"user": user}
//	UpdateUser:    user with id                         -> {"user": user}
//	DeleteUser:    {"id"}                               -> {}
//	WatchUsers:    {}                                   => stream of {"users": [...]}

func userMap(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"email":      u.Email,
		"phone":      u.Phone,
		"dob":        u.DOB,
		"address":    u.Address,
	}
}

func userStruct(u *models.User) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"user": userMap(u)})
}

func usersStruct(list []*models.User, extra map[string]interface{}) (*structpb.Struct, error) {
	items := make([]interface{}, 0, len(list))
	for _, u := range list {
		items = append(items, userMap(u))
	}
	m := map[string]interface{}{"users": items}
	for k, v := range extra {
		m[k] = v
	}
	return structpb.NewStruct(m)
}

func str(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func id(s *structpb.Struct) (int64, error) {
	v, ok := s.GetFields()["id"]
	if !ok {
		return 0, fmt.Errorf("id is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("id must be a number")
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f <= 0 || f > 1<<53 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return int64(f), nil
}

func criteria(s *structpb.Struct) filter.Criteria {
	return filter.Criteria{
		FirstName: str(s, "first_name"),
		LastName:  str(s, "last_name"),
		Email:     str(s, "email"),
		Phone:     str(s, "phone"),
	}
}

func input(s *structpb.Struct) users.Input {
	return users.Input{
		FirstName: str(s, "first_name"),
		LastName:  str(s, "last_name"),
		Email:     str(s, "email"),
		Phone:     str(s, "phone"),
		DOB:       str(s, "dob"),
		Address:   str(s, "address"),
	}
}

// DecodeUser reads a user document.
func DecodeUser(s *structpb.Struct) *models.User {
	u := &models.User{
		FirstName: str(s, "first_name"),
		LastName:  str(s, "last_name"),
		Email:     str(s, "email"),
		Phone:     str(s, "phone"),
		DOB:       str(s, "dob"),
		Address:   str(s, "address"),
	}
	if n, err := id(s); err == nil {
		u.ID = n
	}
	return u
}

// DecodeUsers reads the "users" list of a response.
func DecodeUsers(s *structpb.Struct) []*models.User {
	list := s.GetFields()["users"].GetListValue().GetValues()
	out := make([]*models.User, 0, len(list))
	for _, v := range list {
		if st := v.GetStructValue(); st != nil {
			out = append(out, DecodeUser(st))
		}
	}
	return out
}

// EncodeCriteria builds a FilterUsers request.
func EncodeCriteria(c filter.Criteria) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"first_name": c.FirstName,
		"last_name":  c.LastName,
		"email":      c.Email,
		"phone":      c.Phone,
	})
}

// EncodeInput builds a CreateUser request, or an UpdateUser request when
// userID is non-zero.
func EncodeInput(userID int64, in users.Input) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"email":      in.Email,
		"phone":      in.Phone,
		"dob":        in.DOB,
		"address":    in.Address,
	}
	if userID != 0 {
		m["id"] = userID
	}
	return structpb.NewStruct(m)
}
