package sqlinline

const QUpsertJobSnapshot = `--sql 81c36086-c1ad-49a3-ad96-47af4498ad0d
insert into job_snapshots (job_id, kind, provider, state, snapshot, created_at, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::jsonb, now(), now())
on conflict (job_id) do update set
    state = excluded.state,
    snapshot = excluded.snapshot,
    updated_at = now();
`

const QSelectJobSnapshot = `--sql ee73e65c-6c1c-4819-9604-5811ac907fad
select snapshot
from job_snapshots
where job_id = $1::text
limit 1;
`

const QDeleteJobSnapshot = `--sql 4b7af8f0-9900-478d-81be-8f313577c076
delete from job_snapshots
where job_id = $1::text;
`
