package access

import "slices"

// View is a navigable dashboard destination.
type View struct {
	Key   string `json:"key"`
	Path  string `json:"to"`
	Label string `json:"label"`
	Roles []Role `json:"-"`
}

// View keys.
const (
	ViewCustomersNew  = "customers.new"
	ViewCustomersList = "customers.list"
	ViewTripsRecord   = "trips.record"
	ViewTripsEdit     = "trips.edit"
	ViewTripsPending  = "trips.pending"
	ViewTripsExport   = "trips.export"
	ViewUsersRoles    = "users.roles"
)

const (
	LoadingMessage  = "Loading..."
	NoAccessMessage = "No access."
)

var views = []View{
	{Key: ViewCustomersNew, Path: "/dashboard/customers/new", Label: "New customer", Roles: []Role{RoleAdmin}},
	{Key: ViewCustomersList, Path: "/dashboard/customers", Label: "Edit/Show customer", Roles: []Role{RoleAdmin}},
	{Key: ViewTripsRecord, Path: "/dashboard/trips/record", Label: "Record trip", Roles: []Role{RoleAdmin, RoleUser}},
	{Key: ViewTripsEdit, Path: "/dashboard/trips/edit", Label: "Edit trip", Roles: []Role{RoleAdmin, RoleUser}},
	{Key: ViewTripsPending, Path: "/dashboard/trips/pending", Label: "Pending trips", Roles: []Role{RoleAdmin}},
	{Key: ViewTripsExport, Path: "/dashboard/trips/export", Label: "Export trips", Roles: []Role{RoleAdmin}},
	{Key: ViewUsersRoles, Path: "/dashboard/users", Label: "Users roles", Roles: []Role{RoleAdmin}},
}

// Views returns the destination table in display order.
func Views() []View {
	return slices.Clone(views)
}

// ViewByKey looks up a destination.
func ViewByKey(key string) (View, bool) {
	for _, v := range views {
		if v.Key == key {
			return v, true
		}
	}
	return View{}, false
}

// Visible filters table to the entries the resolution may see. Nothing is
// visible while resolving or when no role was found.
func Visible(table []View, res Resolution) []View {
	out := []View{}
	if !res.HasRole() {
		return out
	}
	for _, v := range table {
		if slices.Contains(v.Roles, res.Role) {
			out = append(out, v)
		}
	}
	return out
}

// GateState is the per-view guard outcome.
type GateState int

const (
	GateLoading GateState = iota
	GateDenied
	GateAllowed
)

func (s GateState) String() string {
	switch s {
	case GateAllowed:
		return "allowed"
	case GateDenied:
		return "denied"
	default:
		return "loading"
	}
}

// Gate re-checks a single view body against its allow-list.
func Gate(res Resolution, allow []Role) GateState {
	if !res.Resolved {
		return GateLoading
	}
	if res.Role == "" || !slices.Contains(allow, res.Role) {
		return GateDenied
	}
	return GateAllowed
}
