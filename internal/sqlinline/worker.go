package sqlinline

// QWorkerClaimExpiringTokens leases tokens that expire within $2 seconds for
// two minutes, so concurrent workers never refresh the same row.
const QWorkerClaimExpiringTokens = `--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db
with due as (
    select user_id, platform
    from social_media_tokens
    where platform = $1::text
      and refresh_token is not null
      and expires_at is not null
      and expires_at < now() + make_interval(secs => $2::int)
      and (refresh_claimed_until is null or refresh_claimed_until < now())
    order by expires_at asc
    for update skip locked
    limit $3::int
),
claimed as (
    update social_media_tokens t
    set refresh_claimed_until = now() + interval '2 minutes'
    from due
    where t.user_id = due.user_id
      and t.platform = due.platform
    returning t.user_id, t.platform, t.access_token, coalesce(t.refresh_token, ''), t.expires_at,
              coalesce(t.platform_user_id, ''), coalesce(t.username, ''), t.last_used_at, t.created_at, t.updated_at
)
select * from claimed;
`
