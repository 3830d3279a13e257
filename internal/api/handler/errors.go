package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"git.taler.net/nexus/internal/domain/bankaccount"
	"git.taler.net/nexus/internal/domain/bankconnection"
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
	"git.taler.net/nexus/internal/domain/facade"
	"git.taler.net/nexus/internal/domain/nexususer"
	"git.taler.net/nexus/internal/domain/offeredaccount"
	"git.taler.net/nexus/internal/domain/paymentinitiation"
	"git.taler.net/nexus/internal/domain/scheduledtask"
)

// respondDomainError maps a domain error to the HTTP status the
// reference Nexus implementation uses for it. Anything unrecognized
// falls back to 500.
func respondDomainError(c *gin.Context, err error) {
	var (
		connNotFound   bankconnection.ErrNotFound
		connDup        bankconnection.ErrDuplicateName
		acctNotFound   bankaccount.ErrNotFound
		acctDup        bankaccount.ErrDuplicateLabel
		subNotFound    ebicssubscriber.ErrNotFound
		offeredNF      offeredaccount.ErrNotFound
		alreadyImp     offeredaccount.ErrAlreadyImported
		initNotFound   paymentinitiation.ErrNotFound
		uidConflict    paymentinitiation.ErrUIDConflict
		taskNotFound   scheduledtask.ErrNotFound
		taskDup        scheduledtask.ErrDuplicate
		facadeNotFound facade.ErrNotFound
		facadeDup      facade.ErrDuplicate
		userNotFound   nexususer.ErrNotFound
		userDup        nexususer.ErrDuplicateUsername
	)

	switch {
	case errors.As(err, &connNotFound), errors.As(err, &acctNotFound), errors.As(err, &subNotFound),
		errors.As(err, &offeredNF), errors.As(err, &initNotFound), errors.As(err, &taskNotFound),
		errors.As(err, &facadeNotFound), errors.As(err, &userNotFound):
		RespondNotFound(c, err.Error())
	case errors.As(err, &connDup):
		// The reference implementation surfaces a duplicate connection
		// name as 406, not 409.
		RespondWithError(c, http.StatusNotAcceptable, "NOT_ACCEPTABLE", err.Error())
	case errors.As(err, &acctDup), errors.As(err, &taskDup), errors.As(err, &facadeDup), errors.As(err, &userDup):
		RespondConflict(c, err.Error())
	case errors.As(err, &alreadyImp), errors.As(err, &uidConflict):
		RespondConflict(c, err.Error())
	case errors.Is(err, ebicssubscriber.ErrBankKeysNotReady):
		RespondBadRequest(c, err.Error())
	default:
		RespondInternalError(c)
	}
}
