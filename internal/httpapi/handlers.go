package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authkit"
	"github.com/labstack/echo/v4"
)

var tokenScopes = map[string]bool{
	authkit.ScopeLogin:    true,
	authkit.ScopeRegister: true,
	authkit.ScopeRecovery: true,
	authkit.ScopeInvite:   true,
	authkit.ScopeAdmin:    true,
	authkit.ScopeSettings: true,
	authkit.ScopeAccount:  true,
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, authkit.NewResult().Fail(authkit.CodeBadRequest, msg))
}

func (s *Server) issueToken(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	scope := c.Param("scope")
	if !tokenScopes[scope] {
		return badRequest(c, "unknown scope")
	}
	tok, err := s.engine.IssueToken(cl, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authkit.NewResult().Set("token", tok))
}

// issueCaptcha returns the challenge text. A rendering frontend turns it
// into an image; this API only carries it.
func (s *Server) issueCaptcha(c echo.Context) error {
	if s.captcha == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	cl, err := client(c)
	if err != nil {
		return err
	}
	scope := c.Param("scope")
	if scope != authkit.ScopeRegister && scope != authkit.ScopeRecovery {
		return badRequest(c, "unknown scope")
	}
	code, err := s.captcha.Issue(cl.Session, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authkit.NewResult().Set("challenge", code))
}

func (s *Server) checkSession(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.CheckAuthentication(c.Request().Context(), cl)
	if err != nil {
		return err
	}
	if !res.Failed() {
		res.Set("settings", s.engine.SessionSettings(cl))
	}
	positive, negative := s.engine.TakeFeedback(cl)
	if len(positive) > 0 || len(negative) > 0 {
		res.Set("feedback", map[string][]string{"positive": positive, "negative": negative})
	}
	return c.JSON(res.Code, res)
}

func (s *Server) login(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.Login(c.Request().Context(), cl, authkit.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Token:      token(c),
	})
	return s.respond(c, res, err)
}

func (s *Server) loginWithCookie(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.LoginWithCookie(c.Request().Context(), cl)
	return s.respond(c, res, err)
}

func (s *Server) logout(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.Logout(c.Request().Context(), cl)
	return s.respond(c, res, err)
}

func (s *Server) register(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.Register(c.Request().Context(), cl, authkit.RegistrationInput{
		Name:           req.Name,
		Email:          req.Email,
		EmailRepeat:    req.EmailRepeat,
		Password:       req.Password,
		PasswordRepeat: req.PasswordRepeat,
		Captcha:        req.Captcha,
	})
	return s.respond(c, res, err)
}

func (s *Server) verifyRegistration(c echo.Context) error {
	res, err := s.engine.VerifyRegisteredUser(c.Request().Context(), c.Param("id"), c.Param("hash"))
	return s.respond(c, res, err)
}

func (s *Server) verifyInvitation(c echo.Context) error {
	res, err := s.engine.VerifyInvitedUser(c.Request().Context(), c.Param("id"), c.Param("hash"))
	return s.respond(c, res, err)
}

func (s *Server) completeRegistration(c echo.Context) error {
	var req completionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.CompleteRegistration(c.Request().Context(), authkit.CompletionInput{
		UserID:         req.UserID,
		Hash:           req.Hash,
		Name:           req.Name,
		Password:       req.Password,
		PasswordRepeat: req.PasswordRepeat,
	})
	return s.respond(c, res, err)
}

func (s *Server) requestRecovery(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req recoveryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.RequestPasswordRecovery(c.Request().Context(), cl, req.Identifier, req.Captcha)
	return s.respond(c, res, err)
}

func (s *Server) verifyResetLink(c echo.Context) error {
	res, err := s.engine.VerifyPasswordResetLink(c.Request().Context(), c.Param("name"), c.Param("hash"))
	return s.respond(c, res, err)
}

func (s *Server) resetPassword(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.ResetPassword(c.Request().Context(), authkit.PasswordResetInput{
		Name:           req.Name,
		Hash:           req.Hash,
		Password:       req.Password,
		PasswordRepeat: req.PasswordRepeat,
	})
	return s.respond(c, res, err)
}

/*
====================================
ACCOUNT
====================================
*/

func (s *Server) editName(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.EditUserName(c.Request().Context(), cl, req.Value, token(c))
	return s.respond(c, res, err)
}

func (s *Server) editEmail(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.EditUserEmail(c.Request().Context(), cl, req.Value, token(c))
	return s.respond(c, res, err)
}

func (s *Server) changePassword(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req passwordChangeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.ChangePassword(c.Request().Context(), cl, authkit.PasswordChangeInput{
		Current:        req.Current,
		Password:       req.Password,
		PasswordRepeat: req.PasswordRepeat,
	}, token(c))
	return s.respond(c, res, err)
}

func (s *Server) setAvatar(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	var req valueRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request")
	}
	res, err := s.engine.SetAvatar(c.Request().Context(), cl, req.Value, token(c))
	return s.respond(c, res, err)
}

func (s *Server) deleteAvatar(c echo.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	res, err := s.engine.DeleteAvatar(c.Request().Context(), cl, token(c))
	return s.respond(c, res, err)
}
