package model

import "time"

// ApiRoute maps an apiId (the first path segment of an inbound request)
// to a downstream target. Rows live in the api_list table and are managed
// by an external console; the gateway only ever reads them.
type ApiRoute struct {
	ApiID       string     `json:"api_id" bson:"api_id" db:"api_id"`
	ApiName     string     `json:"api_name" bson:"api_name" db:"api_name"`
	Path        string     `json:"path" bson:"path" db:"path"`
	Method      string     `json:"method" bson:"method" db:"method"`
	UseYn       string     `json:"use_yn" bson:"use_yn" db:"use_yn"`
	Description string     `json:"description,omitempty" bson:"description,omitempty" db:"description"`
	FlowData    string     `json:"flow_data,omitempty" bson:"flow_data,omitempty" db:"flow_data"`
	WriteID     string     `json:"write_id,omitempty" bson:"write_id,omitempty" db:"write_id"`
	WriteDate   *time.Time `json:"write_date,omitempty" bson:"write_date,omitempty" db:"write_date"`
	UpdateID    string     `json:"update_id,omitempty" bson:"update_id,omitempty" db:"update_id"`
	UpdateDate  *time.Time `json:"update_date,omitempty" bson:"update_date,omitempty" db:"update_date"`
}

// Enabled reports whether the route may serve traffic.
func (r *ApiRoute) Enabled() bool {
	return r != nil && (r.UseYn == "Y" || r.UseYn == "y")
}
