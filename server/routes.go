package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/JasonDocton/rad-crowdfunding/controllers"
	"github.com/JasonDocton/rad-crowdfunding/httpserverutils"
)

const routeParamAddress = "address"

const queryParamLimit = "limit"

// sessionCookieName and sessionHeaderName are where the donor's session id is
// looked for, in that order. The session itself is issued by the site's outer
// web stack.
const (
	sessionCookieName = "sessionId"
	sessionHeaderName = "X-Session-Id"
)

type handlerFunc func(r *http.Request) (interface{}, *httpserverutils.HandlerError)

func makeHandler(handler handlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response, hErr := handler(r)
		if hErr != nil {
			sendErr(w, r, hErr)
			return
		}
		err := httpserverutils.SendJSONResponse(w, response)
		if err != nil {
			log.Errorf("Error sending a response to %s: %s", r.URL.Path, err)
		}
	}
}

func sendErr(w http.ResponseWriter, r *http.Request, hErr *httpserverutils.HandlerError) {
	log.Warnf("%s %s returned %d: %s", r.Method, r.URL.Path, hErr.Code, hErr)
	err := httpserverutils.SendErr(w, hErr)
	if err != nil {
		log.Errorf("Error sending an error response to %s: %s", r.URL.Path, err)
	}
}

// sessionID extracts the donor's session id from the request.
func sessionID(r *http.Request) (string, *httpserverutils.HandlerError) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if header := r.Header.Get(sessionHeaderName); header != "" {
		return header, nil
	}
	return "", httpserverutils.NewHandlerError(http.StatusUnprocessableEntity,
		"The request carries no session.")
}

func mainHandler(_ *http.Request) (interface{}, *httpserverutils.HandlerError) {
	return "Payment server is running", nil
}

func addRoutes(router *mux.Router, ctx *controllers.Context) {
	router.HandleFunc("/", makeHandler(mainHandler))

	router.HandleFunc("/bitcoin/address",
		makeHandler(func(r *http.Request) (interface{}, *httpserverutils.HandlerError) {
			session, hErr := sessionID(r)
			if hErr != nil {
				return nil, hErr
			}
			return controllers.GenerateAddressHandler(ctx, session, r.Body)
		})).
		Methods("POST")

	router.HandleFunc(
		fmt.Sprintf("/bitcoin/check/{%s}", routeParamAddress),
		makeHandler(func(r *http.Request) (interface{}, *httpserverutils.HandlerError) {
			session, hErr := sessionID(r)
			if hErr != nil {
				return nil, hErr
			}
			return controllers.CheckPaymentHandler(ctx, session,
				mux.Vars(r)[routeParamAddress])
		})).
		Methods("GET")

	router.HandleFunc(
		fmt.Sprintf("/bitcoin/expire/{%s}", routeParamAddress),
		makeHandler(func(r *http.Request) (interface{}, *httpserverutils.HandlerError) {
			session, hErr := sessionID(r)
			if hErr != nil {
				return nil, hErr
			}
			return controllers.MarkExpiredHandler(ctx, session,
				mux.Vars(r)[routeParamAddress])
		})).
		Methods("POST")

	router.HandleFunc("/exchange-rate",
		makeHandler(func(_ *http.Request) (interface{}, *httpserverutils.HandlerError) {
			return controllers.GetExchangeRateHandler(ctx)
		})).
		Methods("GET")

	router.HandleFunc("/donations",
		makeHandler(func(r *http.Request) (interface{}, *httpserverutils.HandlerError) {
			limit, hErr := limitQueryParam(r)
			if hErr != nil {
				return nil, hErr
			}
			return controllers.GetDonationsHandler(ctx, limit)
		})).
		Methods("GET")
}

func limitQueryParam(r *http.Request) (int, *httpserverutils.HandlerError) {
	values := r.URL.Query()[queryParamLimit]
	if len(values) == 0 {
		return 0, nil
	}
	if len(values) > 1 {
		return 0, httpserverutils.NewHandlerError(http.StatusUnprocessableEntity,
			fmt.Sprintf("Couldn't parse the '%s' query parameter: expected "+
				"a single value but got an array", queryParamLimit))
	}
	limit, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, httpserverutils.NewHandlerError(http.StatusUnprocessableEntity,
			fmt.Sprintf("Couldn't parse the '%s' query parameter: %s",
				queryParamLimit, err))
	}
	return limit, nil
}
