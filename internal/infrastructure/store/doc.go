// Package store provides the local SQLite cache for DayBetter
// certificate bundles.
//
// The cloud API hands out one certificate bundle per account. Downloads
// are rate limited and require a valid API token, so the bridge persists
// the raw bundle bytes locally and only goes back to the cloud when
// neither the materialised files nor the cached bundle are usable.
//
// Bundles are stored exactly as downloaded. Parsing and
// materialisation happen in the certs package; the store never inspects
// bundle contents.
//
// # Usage
//
//	st, err := store.Open(store.Config{Path: "./data/daybetter.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	err = st.SaveBundle(ctx, "acct-42", raw)
//	raw, fetchedAt, err := st.LoadBundle(ctx, "acct-42")
package store
