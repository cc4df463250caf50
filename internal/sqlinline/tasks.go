package sqlinline

const QInsertImageTask = `--sql 3b1f6c2e-8d4a-4f0b-9c57-2a6e1d9f0b41
insert into image_tasks (
    id, user_id, prompt, model, aspect_ratio, num_outputs,
    provider, provider_model_id, status, created_at, updated_at
)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::int, $7::text, $8::text, $9::text, $10::timestamptz, $10::timestamptz);
`

const QSelectImageTask = `--sql 9e4d2a71-5c3b-4e8f-a1d6-7b0c3f52e984
select id::text, user_id, prompt, model, aspect_ratio, num_outputs,
       provider, provider_model_id, status, error_message,
       processing_time_ms, credits_used, created_at, updated_at
from image_tasks
where id = $1::uuid;
`

// Terminal rows are never rewritten; zero affected rows means either a
// missing task or a terminal one, and the caller disambiguates.
const QUpdateImageTaskStatus = `--sql c7a05e3d-2f91-4b6c-8e4a-d13f6b70a2c5
update image_tasks
set status = $2::text,
    error_message = $3::text,
    processing_time_ms = $4::bigint,
    credits_used = $5::numeric,
    updated_at = now()
where id = $1::uuid
  and status not in ('completed', 'failed');
`

const QListRecentImageTasks = `--sql 5d8b3f10-6a2e-4c7d-b94f-0e1a2c3d4b56
select id::text, user_id, prompt, model, aspect_ratio, num_outputs,
       provider, provider_model_id, status, error_message,
       processing_time_ms, credits_used, created_at, updated_at
from image_tasks
where ($1::text = '' or user_id = $1::text)
order by created_at desc, id desc
limit $2::int;
`

const QDeleteImageTask = `--sql 1f6e9a4b-3c2d-4d8e-a7b0-58c9d2e1f403
delete from image_tasks
where id = $1::uuid;
`

const QInsertImageTaskInput = `--sql 8a2c4e6f-1b3d-4f5a-9c7e-0d2b4f6a8c1e
insert into image_task_inputs (id, task_id, storage_key, file_name, file_size, file_type, ordinal, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::bigint, $6::text, $7::int, $8::timestamptz);
`

const QListImageTaskInputs = `--sql 2e4a6c8b-0d1f-4a3c-8e5b-7f9d1b3e5a70
select id::text, task_id::text, storage_key, file_name, file_size, file_type, ordinal, created_at
from image_task_inputs
where task_id = $1::uuid
order by ordinal asc;
`

const QInsertImageTaskOutput = `--sql 6b8d0f2a-4c6e-4b1d-a3f5-9e1c3a5b7d90
insert into image_task_outputs (id, task_id, storage_key, ordinal, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::int, $5::timestamptz);
`

const QListImageTaskOutputs = `--sql 0c2e4a6b-8d1f-4c3e-b5a7-1d3f5b7c9e02
select id::text, task_id::text, storage_key, ordinal, created_at
from image_task_outputs
where task_id = $1::uuid
order by ordinal asc;
`

const QInsertImageTaskFailure = `--sql 4f6a8c0e-2b4d-4e6f-8a0c-3e5b7d9f1a24
insert into image_task_failures (task_id, ordinal, reason, created_at)
values ($1::uuid, $2::int, $3::text, $4::timestamptz);
`

const QListImageTaskFailures = `--sql 7a9c1e3b-5d7f-4a2c-9e4b-6f8a0c2e4d68
select task_id::text, ordinal, reason, created_at
from image_task_failures
where task_id = $1::uuid
order by ordinal asc, created_at asc;
`
