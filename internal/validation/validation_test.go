package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var verr *Error
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func fieldNames(fields []FieldError) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return names
}

func TestEmbeddedSchemasCompile(t *testing.T) {
	v := mustValidator(t)
	for _, id := range []string{
		Register, Login, ForgotPassword, VerifyOTP, ResetPassword, CreateAdmin,
		CampaignCreate, Donation, DonationDirect, Comment, ProfileUpdate,
		RoleUpdate, Moderation, Contact, ContactUpdate,
	} {
		_, ok := v.schemas[id]
		assert.True(t, ok, id)
	}
}

func TestValidateRegister(t *testing.T) {
	v := mustValidator(t)

	assert.NoError(t, v.Validate([]byte(`{"email":"ada@example.com","password":"s3cretpass","name":"Ada"}`), Register))

	fields := fieldErrors(t, v.Validate([]byte(`{"email":"ada@example.com"}`), Register))
	assert.ElementsMatch(t, []string{"name", "password"}, fieldNames(fields))

	fields = fieldErrors(t, v.Validate([]byte(`{"email":"not-an-email","password":"short","name":"Ada"}`), Register))
	assert.ElementsMatch(t, []string{"email", "password"}, fieldNames(fields))
}

func TestValidateVerifyOTP(t *testing.T) {
	v := mustValidator(t)

	assert.NoError(t, v.Validate([]byte(`{"email":"ada@example.com","otp":"012345"}`), VerifyOTP))
	fields := fieldErrors(t, v.Validate([]byte(`{"email":"ada@example.com","otp":"12ab56"}`), VerifyOTP))
	assert.Equal(t, []string{"otp"}, fieldNames(fields))
}

func TestValidateCampaignCreate(t *testing.T) {
	v := mustValidator(t)

	ok := `{"title":"Clean water","description":"Wells","category":"Health","goalAmount":5000,"deadline":"2030-01-01"}`
	assert.NoError(t, v.Validate([]byte(ok), CampaignCreate))

	fields := fieldErrors(t, v.Validate([]byte(`{"title":"Clean water","goalAmount":"lots"}`), CampaignCreate))
	assert.Subset(t, fieldNames(fields), []string{"category", "deadline", "description", "goalAmount"})
}

func TestValidateProfileUpdateNeedsCurrentPassword(t *testing.T) {
	v := mustValidator(t)

	assert.NoError(t, v.Validate([]byte(`{"name":"Ada L"}`), ProfileUpdate))
	assert.NoError(t, v.Validate([]byte(`{"currentPassword":"old","newPassword":"new-secret"}`), ProfileUpdate))
	assert.Error(t, v.Validate([]byte(`{"newPassword":"new-secret"}`), ProfileUpdate))
}

func TestValidateEnums(t *testing.T) {
	v := mustValidator(t)

	assert.NoError(t, v.Validate([]byte(`{"role":"admin"}`), RoleUpdate))
	assert.Error(t, v.Validate([]byte(`{"role":"root"}`), RoleUpdate))
	assert.NoError(t, v.Validate([]byte(`{"status":"rejected","note":"spam"}`), Moderation))
	assert.Error(t, v.Validate([]byte(`{"status":"maybe"}`), Moderation))
	assert.Error(t, v.Validate([]byte(`{}`), ContactUpdate))
}

func TestValidateMalformedBody(t *testing.T) {
	v := mustValidator(t)

	fields := fieldErrors(t, v.Validate([]byte(`{"email":`), Login))
	assert.Equal(t, []string{"body"}, fieldNames(fields))

	fields = fieldErrors(t, v.Validate([]byte(`[]`), Login))
	assert.Equal(t, []string{"body"}, fieldNames(fields))
}

func TestValidateUnknownSchema(t *testing.T) {
	v := mustValidator(t)
	err := v.Validate([]byte(`{}`), baseID+"nope.json")
	require.Error(t, err)
	var verr *Error
	assert.NotErrorAs(t, err, &verr)
}

func TestValidateAcceptsNullOptionalFields(t *testing.T) {
	v := mustValidator(t)

	campaign := `{"title":"Clean water","description":"Wells","category":"community","goalAmount":50,"deadline":"2030-01-01","mediaUrls":null}`
	assert.NoError(t, v.Validate([]byte(campaign), CampaignCreate))
	fields := fieldErrors(t, v.Validate([]byte(`{"title":"t","description":"d","category":"c","goalAmount":1,"deadline":"2030-01-01","mediaUrls":"x"}`), CampaignCreate))
	assert.Equal(t, []string{"mediaUrls"}, fieldNames(fields))

	assert.NoError(t, v.Validate([]byte(`{"status":"resolved","adminResponse":null}`), ContactUpdate))
	assert.Error(t, v.Validate([]byte(`{"status":"archived"}`), ContactUpdate))
}
