package shared

import (
	"net/http"
	"strconv"

	"github.com/go-playground/form"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Decoder decodes query strings and form bodies into tagged structs.
var Decoder = form.NewDecoder()

// ParseID extracts the numeric {id} route variable.
func ParseID(r *http.Request) (uint, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ParseUUID extracts the {id} route variable as a UUID.
func ParseUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}
