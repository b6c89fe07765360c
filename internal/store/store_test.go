package store

import "testing"

func testStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestAccountCreatedOnFirstLookup(t *testing.T) {
	st := testStore(t)

	acct, err := st.Account("chirper", "https://api.example.com/1")
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if acct.Name != "chirper" || acct.BaseURL != "https://api.example.com/1" {
		t.Fatalf("created account = %+v", acct)
	}
	if acct.Credential != "" {
		t.Fatalf("new account has credential %q", acct.Credential)
	}

	again, err := st.Account("chirper", "https://api.example.com/1")
	if err != nil {
		t.Fatalf("Account (second): %v", err)
	}
	if again.ID != acct.ID {
		t.Fatalf("second lookup created a new row: %d != %d", again.ID, acct.ID)
	}
}

func TestSaveCredentialRoundTrip(t *testing.T) {
	st := testStore(t)
	if _, err := st.Account("chirper", "https://api.example.com/1"); err != nil {
		t.Fatal(err)
	}

	if err := st.SaveCredential("chirper", "oauth_token=a&oauth_token_secret=b"); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}

	acct, err := st.Account("chirper", "https://api.example.com/1")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Credential != "oauth_token=a&oauth_token_secret=b" {
		t.Fatalf("Credential = %q", acct.Credential)
	}
}

func TestAccountsIsolatedByName(t *testing.T) {
	st := testStore(t)
	if _, err := st.Account("alpha", "https://a.example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Account("beta", "https://b.example.com"); err != nil {
		t.Fatal(err)
	}

	if err := st.SaveCredential("alpha", "oauth_token=x"); err != nil {
		t.Fatal(err)
	}

	beta, err := st.Account("beta", "https://b.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if beta.Credential != "" {
		t.Fatalf("beta picked up alpha's credential: %q", beta.Credential)
	}
}
